package domain

import "strings"

// Reference points at another archive entry. A resolved reference carries the
// reference string; an unresolved one keeps only the lab_id so a later
// re-process can bind it.
type Reference struct {
	Ref   string
	LabID string
	Name  string
}

// Resolved reports whether the reference carries a pointer.
func (r Reference) Resolved() bool { return r.Ref != "" }

// IsZero reports whether the reference is empty.
func (r Reference) IsZero() bool { return r.Ref == "" && r.LabID == "" && r.Name == "" }

// Stub builds an unresolved reference for labID.
func Stub(labID string) Reference { return Reference{LabID: labID} }

func (r Reference) export() any {
	if r.Ref != "" {
		return r.Ref
	}
	m := map[string]any{}
	if r.LabID != "" {
		m["lab_id"] = r.LabID
	}
	if r.Name != "" {
		m["name"] = r.Name
	}
	return m
}

func referenceFromMap(m map[string]any) Reference {
	var r Reference
	if v, ok := m["lab_id"].(string); ok {
		r.LabID = v
	}
	if v, ok := m["name"].(string); ok {
		r.Name = v
	}
	if v, ok := m["reference"].(string); ok {
		r.Ref = v
	}
	return r
}

// EntryID extracts the entry id from a reference string of the form
// ../uploads/{uid}/archive/{entry_id}#data.
func (r Reference) EntryID() string {
	ref := strings.TrimSuffix(r.Ref, "#data")
	if i := strings.LastIndex(ref, "/archive/"); i >= 0 {
		return ref[i+len("/archive/"):]
	}
	return ""
}

// UploadID extracts the upload id from the reference string.
func (r Reference) UploadID() string {
	ref := strings.TrimPrefix(r.Ref, "../uploads/")
	if i := strings.Index(ref, "/"); i > 0 && ref != r.Ref {
		return ref[:i]
	}
	return ""
}
