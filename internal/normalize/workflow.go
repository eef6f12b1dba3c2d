package normalize

import (
	"context"

	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
)

// GrowthLinks adds workflow links of a growth process: every layer and
// stack named by the steps' sample parameters becomes an output, every
// substrate an input. Links already present are kept once.
func GrowthLinks(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
	for _, step := range sec.Sub("steps") {
		for _, sp := range step.Sub("sample_parameters") {
			if layer, ok := sp.Ref("layer"); ok {
				name := layer.Name
				if name == "" {
					name = sp.Str("name")
				}
				if err := addLink(sec, "outputs", name, layer); err != nil {
					return err
				}
			}
			if stack, ok := sp.Ref("stack"); ok {
				if err := addLink(sec, "outputs", stack.Name, stack); err != nil {
					return err
				}
			}
			if sub, ok := sp.Ref("substrate"); ok {
				if err := addLink(sec, "inputs", sub.Name, sub); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sameTarget(a, b domain.Reference) bool {
	if a.Ref != "" || b.Ref != "" {
		return a.Ref == b.Ref
	}
	return a.LabID == b.LabID
}

func addLink(sec *domain.Section, list, name string, ref domain.Reference) error {
	if ref.IsZero() {
		return nil
	}
	for _, l := range sec.Sub(list) {
		if have, ok := l.Ref("section"); ok && sameTarget(have, ref) {
			return nil
		}
	}
	if name == "" {
		name = ref.LabID
	}
	link, err := sec.NewSub(list)
	if err != nil {
		return err
	}
	if name != "" {
		if err := link.Set("name", name); err != nil {
			return err
		}
	}
	return link.Set("section", ref)
}
