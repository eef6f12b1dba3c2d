package sem

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/errs"
	"elncore/pkg/units"
)

type entry struct {
	tag, typ uint16
	count    uint32
	value    uint32
}

// buildTIFF writes a little-endian 2x1 grayscale TIFF whose first IFD
// carries meta under tag.
func buildTIFF(tag uint16, meta string) []byte {
	blob := append([]byte(meta), 0)
	const nEntries = 9
	ifdEnd := 8 + 2 + nEntries*12 + 4
	metaAt := ifdEnd
	pixAt := metaAt + len(blob)
	entries := []entry{
		{256, 3, 1, 2},
		{257, 3, 1, 1},
		{258, 3, 1, 8},
		{259, 3, 1, 1},
		{262, 3, 1, 1},
		{273, 4, 1, uint32(pixAt)},
		{278, 3, 1, 1},
		{279, 4, 1, 2},
		{tag, 2, uint32(len(blob)), uint32(metaAt)},
	}
	le := binary.LittleEndian
	out := []byte{'I', 'I', 42, 0, 8, 0, 0, 0}
	out = le.AppendUint16(out, nEntries)
	for _, e := range entries {
		out = le.AppendUint16(out, e.tag)
		out = le.AppendUint16(out, e.typ)
		out = le.AppendUint32(out, e.count)
		out = le.AppendUint32(out, e.value)
	}
	out = le.AppendUint32(out, 0)
	out = append(out, blob...)
	return append(out, 0x10, 0x20)
}

const zeissMeta = "0\r\nAP_EHT\r\nEHT = 5.00 kV\r\nAP_WD\r\nWD = 8.5 mm\r\nAP_MAG\r\nMag = 10.00 K X\r\n" +
	"AP_PIXEL_SIZE\r\nPixel Size = 11.17 nm\r\nDP_DETECTOR_CHANNEL\r\nSignal A = InLens\r\n" +
	"AP_DATE\r\nDate :12 Mar 2024\r\nAP_TIME\r\nTime :10:28:22\r\n"

func TestDecodeZeiss(t *testing.T) {
	tree, warn, err := Decode(buildTIFF(TagZeiss, zeissMeta))
	require.NoError(t, err)
	assert.Empty(t, warn)

	w, _ := tree.Get("image_width")
	h, _ := tree.Get("image_height")
	assert.Equal(t, int64(2), w)
	assert.Equal(t, int64(1), h)
	assert.Equal(t, VendorZeiss, tree.Str("vendor"))

	eht, ok := tree.Quantity("accelerating_voltage")
	require.True(t, ok)
	assert.True(t, eht.Equal(units.Q(5000, "V")))
	wd, _ := tree.Quantity("working_distance")
	assert.InDelta(t, 8.5e-3, wd.ToSI().Magnitude, 1e-12)
	px, _ := tree.Quantity("pixel_size")
	assert.InDelta(t, 11.17e-9, px.ToSI().Magnitude, 1e-18)
	mag, _ := tree.Float("magnification")
	assert.Equal(t, 10000.0, mag)
	assert.Equal(t, "InLens", tree.Str("detector"))
	assert.Equal(t, "12 Mar 2024 10:28:22", tree.Str("datetime"))
}

const feiMeta = "[User]\r\nDate=03/12/2024\r\nTime=10:28:22 AM\r\n[Beam]\r\nHV=15000\r\n" +
	"[Stage]\r\nWorkingDistance=0.0041\r\n[Scan]\r\nPixelWidth=2.5e-09\r\n[Detectors]\r\nName=ETD\r\n"

func TestDecodeFEI(t *testing.T) {
	tree, warn, err := Decode(buildTIFF(TagFEI, feiMeta))
	require.NoError(t, err)
	assert.Empty(t, warn)
	assert.Equal(t, VendorFEI, tree.Str("vendor"))
	hv, _ := tree.Quantity("accelerating_voltage")
	assert.True(t, hv.Equal(units.Q(15, "kV")))
	assert.Equal(t, "ETD", tree.Str("detector"))
	assert.Equal(t, "03/12/2024 10:28:22 AM", tree.Str("datetime"))
	assert.Equal(t, "15000", tree.Tree("metadata").Str("Beam/HV"))
	assert.False(t, tree.Has("magnification"))
}

func TestDecodeWithoutVendorTag(t *testing.T) {
	tree, warn, err := Decode(buildTIFF(270, "plain description"))
	require.NoError(t, err)
	require.Len(t, warn, 1)
	assert.False(t, tree.Has("vendor"))
}

func TestDecodeNotTIFF(t *testing.T) {
	_, _, err := Decode([]byte("GIF89a"))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestMagnification(t *testing.T) {
	for in, want := range map[string]float64{"10.00 K X": 1e4, "250 X": 250, "1.2 M X": 1.2e6} {
		got, ok := Magnification(in)
		assert.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-6, in)
	}
	_, ok := Magnification("huge")
	assert.False(t, ok)
}
