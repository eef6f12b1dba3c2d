package search

import (
	"context"
	"fmt"

	"elncore/internal/errs"
	"elncore/pkg/domain"
)

// Resolver binds lab_ids to archive references through an Index.
type Resolver struct {
	index Index
}

// NewResolver returns a resolver over idx.
func NewResolver(idx Index) *Resolver { return &Resolver{index: idx} }

// Find returns the references of all entries with labID among sectionTypes.
func (r *Resolver) Find(ctx context.Context, labID string, sectionTypes ...string) ([]domain.Reference, error) {
	resp, err := r.index.Search(ctx, Query{LabID: labID, SectionTypes: sectionTypes})
	if err != nil {
		return nil, fmt.Errorf("search.find: %s: %w", labID, err)
	}
	refs := make([]domain.Reference, 0, len(resp.Data))
	for _, e := range resp.Data {
		ref := e.Reference()
		ref.LabID = labID
		refs = append(refs, ref)
	}
	return refs, nil
}

// Resolve returns the reference of the entry with labID. A miss returns a
// stub carrying the lab_id and a ReferenceNotFound warning; several hits
// return the first with a DuplicateEntry warning. An empty labID resolves
// to the zero reference.
func (r *Resolver) Resolve(ctx context.Context, labID string, sectionTypes ...string) (domain.Reference, error) {
	if labID == "" {
		return domain.Reference{}, nil
	}
	refs, err := r.Find(ctx, labID, sectionTypes...)
	if err != nil {
		return domain.Stub(labID), errs.Warnf(errs.ErrReferenceNotFound, "search", "resolve",
			"lookup of lab_id %q failed: %v", labID, err)
	}
	switch len(refs) {
	case 0:
		return domain.Stub(labID), errs.Warnf(errs.ErrReferenceNotFound, "search", "resolve",
			"no entry with lab_id %q among %v", labID, sectionTypes)
	case 1:
		return refs[0], nil
	default:
		return refs[0], errs.Warnf(errs.ErrDuplicateEntry, "search", "resolve",
			"%d entries with lab_id %q, using %s", len(refs), labID, refs[0].Ref)
	}
}

// ExistsInUpload reports whether uploadID already holds an entry with labID
// among sectionTypes.
func (r *Resolver) ExistsInUpload(ctx context.Context, uploadID, labID string, sectionTypes ...string) (bool, error) {
	resp, err := r.index.Search(ctx, Query{UploadID: uploadID, LabID: labID, SectionTypes: sectionTypes, Limit: 1})
	if err != nil {
		return false, fmt.Errorf("search.exists: %s: %w", labID, err)
	}
	return resp.Total > 0, nil
}
