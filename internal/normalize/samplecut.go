package normalize

import (
	"context"
	"fmt"

	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

// ChildFileName is the archive file of the i-th (1-based) piece cut from
// parentLabID.
func ChildFileName(parentLabID string, i int) string {
	return fmt.Sprintf("%s_child%d.%s.archive.yaml", parentLabID, i, schema.CompositeSystem)
}

// SampleCutChildren emits number_of_children composite systems cut from the
// parent sample and lists them as the cut's children.
func SampleCutChildren(ctx context.Context, pc pluginapi.Context, sec *domain.Section) error {
	parent := sec.Str("parent_lab_id")
	n, _ := sec.Int("number_of_children")
	if parent == "" || n <= 0 || pc == nil {
		return nil
	}
	parentRef, ok := sec.Ref("parent_sample")
	if !ok || !parentRef.Resolved() {
		parentRef = pc.Resolve(ctx, parent, schema.CompositeSystem)
		if err := sec.Set("parent_sample", parentRef); err != nil {
			return err
		}
	}
	sec.ClearSub("children")
	for i := 1; i <= int(n); i++ {
		labID := fmt.Sprintf("%s_child%d", parent, i)
		child, err := pc.Schema().New(schema.CompositeSystem)
		if err != nil {
			return err
		}
		child.MustSet("name", labID).MustSet("lab_id", labID)
		if d, ok := sec.Time("datetime"); ok {
			child.MustSet("datetime", d)
		}
		comp := child.MustNewSub("components")
		comp.MustSet("name", parent).MustSet("system", parentRef)
		ref, err := pc.Emit(ctx, child, ChildFileName(parent, i))
		if err != nil {
			return fmt.Errorf("normalize.sample_cut: emit child %d: %w", i, err)
		}
		ref.LabID, ref.Name = labID, labID
		sr := sec.MustNewSub("children")
		sr.MustSet("name", labID).MustSet("lab_id", labID).MustSet("reference", ref)
	}
	return nil
}
