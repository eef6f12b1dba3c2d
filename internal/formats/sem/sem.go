// Package sem decodes the vendor metadata embedded in SEM TIFF images:
// the Zeiss text block (tag 34118) and the FEI/Thermo INI block (tag 34682).
package sem

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
	"elncore/pkg/units"
)

const component = "formats.sem"

// Private TIFF tags carrying vendor metadata.
const (
	TagZeiss = 34118
	TagFEI   = 34682
)

// Vendors.
const (
	VendorZeiss = "Zeiss"
	VendorFEI   = "FEI"
)

// Decode reads the image configuration and the vendor metadata of a TIFF.
// The tree holds "image_width", "image_height", "vendor", "metadata" (raw
// key/value strings) and the normalized fields "accelerating_voltage",
// "working_distance", "magnification", "pixel_size", "detector" and
// "datetime" where the vendor block provides them.
func Decode(data []byte) (*record.Tree, formats.Warnings, error) {
	var warn formats.Warnings
	cfg, err := tiff.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, warn, errs.WrapFatal(err, component, "decode")
	}
	tree := record.New().
		Set("image_width", int64(cfg.Width)).
		Set("image_height", int64(cfg.Height))

	tags, err := ReadTags(data, TagZeiss, TagFEI)
	if err != nil {
		return nil, warn, errs.WrapFatal(err, component, "decode")
	}
	switch {
	case tags[TagZeiss] != nil:
		tree.Set("vendor", VendorZeiss)
		meta := parseZeiss(string(tags[TagZeiss]))
		tree.Set("metadata", meta)
		normalizeZeiss(tree, meta, &warn)
	case tags[TagFEI] != nil:
		tree.Set("vendor", VendorFEI)
		meta := parseINI(string(tags[TagFEI]))
		tree.Set("metadata", meta)
		normalizeFEI(tree, meta)
	default:
		warn.Add(errs.Warnf(errs.ErrFileGrammar, component, "decode", "no vendor metadata tag"))
	}
	return tree, warn, nil
}

// ReadTags returns the raw bytes of the wanted tags in the first IFD.
func ReadTags(data []byte, wanted ...uint16) (map[uint16][]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("sem.tags: file too short")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("sem.tags: bad byte order %q", data[:2])
	}
	ifd := int(order.Uint32(data[4:8]))
	if ifd+2 > len(data) {
		return nil, fmt.Errorf("sem.tags: IFD offset %d out of range", ifd)
	}
	want := map[uint16]bool{}
	for _, w := range wanted {
		want[w] = true
	}
	out := map[uint16][]byte{}
	n := int(order.Uint16(data[ifd : ifd+2]))
	for i := 0; i < n; i++ {
		e := ifd + 2 + 12*i
		if e+12 > len(data) {
			return nil, fmt.Errorf("sem.tags: IFD entry %d out of range", i)
		}
		tag := order.Uint16(data[e : e+2])
		if !want[tag] {
			continue
		}
		typ := order.Uint16(data[e+2 : e+4])
		if typ != 1 && typ != 2 && typ != 7 {
			continue
		}
		count := int(order.Uint32(data[e+4 : e+8]))
		var raw []byte
		if count <= 4 {
			raw = data[e+8 : e+8+count]
		} else {
			off := int(order.Uint32(data[e+8 : e+12]))
			if off < 0 || off+count > len(data) {
				return nil, fmt.Errorf("sem.tags: tag %d value out of range", tag)
			}
			raw = data[off : off+count]
		}
		out[tag] = bytes.TrimRight(raw, "\x00")
	}
	return out, nil
}

var zeissLineRe = regexp.MustCompile(`^\s*([^=:]+?)\s*[=:]\s*(.*?)\s*$`)

// parseZeiss reads "Name = value unit" and "Date :value" lines; parameter
// code lines (AP_WD, DP_DETECTOR) without a separator are skipped.
func parseZeiss(text string) *record.Tree {
	meta := record.New()
	for _, l := range strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' }) {
		m := zeissLineRe.FindStringSubmatch(l)
		if m == nil || meta.Has(m[1]) {
			continue
		}
		meta.Set(m[1], m[2])
	}
	return meta
}

// parseINI reads "[Section]" and "Key=Value" lines into "Section/Key".
func parseINI(text string) *record.Tree {
	meta := record.New()
	section := ""
	for _, l := range strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' }) {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "[") && strings.HasSuffix(l, "]") {
			section = strings.Trim(l, "[]")
			continue
		}
		k, v, ok := strings.Cut(l, "=")
		if !ok {
			continue
		}
		meta.Set(section+"/"+strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return meta
}

func setQuantity(tree *record.Tree, key, raw string, warn *formats.Warnings) {
	if raw == "" {
		return
	}
	v, err := formats.Value(raw)
	warn.Add(err)
	switch q := v.(type) {
	case units.Quantity:
		tree.Set(key, q)
	case float64:
		tree.Set(key, q)
	}
}

var magRe = regexp.MustCompile(`^\s*([0-9.]+)\s*([kKM]?)\s*[xX]\s*$`)

// Magnification parses "10.00 K X" style values.
func Magnification(s string) (float64, bool) {
	m := magRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "k", "K":
		v *= 1e3
	case "M":
		v *= 1e6
	}
	return v, true
}

func normalizeZeiss(tree, meta *record.Tree, warn *formats.Warnings) {
	setQuantity(tree, "accelerating_voltage", meta.Str("EHT"), warn)
	setQuantity(tree, "working_distance", meta.Str("WD"), warn)
	setQuantity(tree, "pixel_size", meta.Str("Pixel Size"), warn)
	if mag, ok := Magnification(meta.Str("Mag")); ok {
		tree.Set("magnification", mag)
	}
	if d := meta.Str("Signal A"); d != "" {
		tree.Set("detector", d)
	}
	if d, tm := meta.Str("Date"), meta.Str("Time"); d != "" {
		tree.Set("datetime", strings.TrimSpace(d+" "+tm))
	}
}

func normalizeFEI(tree, meta *record.Tree) {
	if v, err := formats.ParseFloat(meta.Str("Beam/HV")); err == nil && meta.Has("Beam/HV") {
		tree.Set("accelerating_voltage", units.Q(v, "V"))
	}
	if v, err := formats.ParseFloat(meta.Str("Stage/WorkingDistance")); err == nil && meta.Has("Stage/WorkingDistance") {
		tree.Set("working_distance", units.Q(v, "m"))
	}
	if v, err := formats.ParseFloat(meta.Str("Scan/PixelWidth")); err == nil && meta.Has("Scan/PixelWidth") {
		tree.Set("pixel_size", units.Q(v, "m"))
	}
	if d := meta.Str("Detectors/Name"); d != "" {
		tree.Set("detector", d)
	}
	if d, tm := meta.Str("User/Date"), meta.Str("User/Time"); d != "" {
		tree.Set("datetime", strings.TrimSpace(d+" "+tm))
	}
}
