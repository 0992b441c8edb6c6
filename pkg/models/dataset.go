package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well-known sample field and document keys shared by the catalog and the
// schema revisions that rewrite it.
const (
	// FieldFrames is the sample field that links a video sample to its
	// frame data.
	FieldFrames = "frames"

	// KeyFirstFrame is the key under which a frames summary stores the
	// full document of frame number one.
	KeyFirstFrame = "first_frame"

	// KeyFrameCount is the optional key under which a frames summary
	// stores the total number of frames for the sample.
	KeyFrameCount = "frame_count"

	// KeySampleRef is the document key linking a frame to its sample.
	KeySampleRef = "_sample_id"

	// KeyFrameNumber is the document key holding a frame's one-based
	// position within its sample.
	KeyFrameNumber = "frame_number"
)

// Embedded document type names used by the frames field across schema
// versions.
const (
	// DocTypeFramesSummary is the legacy per-sample frames summary that
	// embedded the first frame directly in the sample document.
	DocTypeFramesSummary = "frames.Summary"

	// DocTypeFrames is the current frames field shape, a lightweight view
	// over the dataset's frame collection.
	DocTypeFrames = "frames.Frames"
)

// SchemaError reports a descriptor that violates the catalog schema. The
// dataset name is included when known.
type SchemaError struct {
	Dataset string
	Reason  string
}

func (e *SchemaError) Error() string {
	if e.Dataset == "" {
		return "invalid dataset descriptor: " + e.Reason
	}
	return fmt.Sprintf("invalid descriptor for dataset %q: %s", e.Dataset, e.Reason)
}

// FieldDescriptor declares one top-level field of a dataset's samples.
type FieldDescriptor struct {
	// Name is the document key the field occupies on each sample.
	Name string `json:"name" bson:"name"`

	// Type is the field's declared type tag.
	Type FieldType `json:"ftype" bson:"ftype"`

	// Subfield is the element type of a list field, when declared.
	Subfield *FieldType `json:"subfield,omitempty" bson:"subfield,omitempty"`

	// EmbeddedDocType names the shape of an embedded document field. It
	// is required exactly when Type is an embedded document.
	EmbeddedDocType string `json:"embedded_doc_type,omitempty" bson:"embedded_doc_type,omitempty"`
}

// DatasetDescriptor is the catalog record for one dataset. It names the
// backing collections and declares the schema of the sample documents,
// stamped with the schema version the dataset currently sits at.
type DatasetDescriptor struct {
	Name                 string            `json:"name" bson:"name"`
	MediaType            MediaType         `json:"media_type" bson:"media_type"`
	SampleCollectionName string            `json:"sample_collection_name" bson:"sample_collection_name"`
	FrameCollectionName  string            `json:"frame_collection_name" bson:"frame_collection_name"`
	SampleFields         []FieldDescriptor `json:"sample_fields" bson:"sample_fields"`
	SchemaVersion        int               `json:"schema_version" bson:"schema_version"`
}

// NewDatasetDescriptor builds a descriptor for a fresh dataset at the given
// schema version, with the default sample fields for its media type and
// generated collection names.
func NewDatasetDescriptor(name string, mediaType MediaType, version int) *DatasetDescriptor {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	d := &DatasetDescriptor{
		Name:                 name,
		MediaType:            mediaType,
		SampleCollectionName: "samples_" + suffix,
		SampleFields: []FieldDescriptor{
			{Name: "filepath", Type: FieldTypeString},
			{Name: "tags", Type: FieldTypeList, Subfield: typePtr(FieldTypeString)},
		},
		SchemaVersion: version,
	}
	if mediaType == MediaTypeVideo {
		d.FrameCollectionName = "frames_" + suffix
		d.SampleFields = append(d.SampleFields, FieldDescriptor{
			Name:            FieldFrames,
			Type:            FieldTypeEmbeddedDocument,
			EmbeddedDocType: DocTypeFrames,
		})
	}
	return d
}

func typePtr(t FieldType) *FieldType { return &t }

// Validate checks the descriptor against the catalog schema. A descriptor
// with an empty media type is accepted because datasets created before the
// media type existed carry none until migrated.
func (d *DatasetDescriptor) Validate() error {
	fail := func(format string, args ...any) error {
		return &SchemaError{Dataset: d.Name, Reason: fmt.Sprintf(format, args...)}
	}
	if d.Name == "" {
		return fail("name is empty")
	}
	if d.MediaType != "" {
		if _, err := ParseMediaType(string(d.MediaType)); err != nil {
			return fail("%v", err)
		}
	}
	if d.SampleCollectionName == "" {
		return fail("sample collection name is empty")
	}
	if d.SchemaVersion < 0 {
		return fail("schema version %d is negative", d.SchemaVersion)
	}
	seen := make(map[string]bool, len(d.SampleFields))
	for _, f := range d.SampleFields {
		if f.Name == "" {
			return fail("sample field with empty name")
		}
		if seen[f.Name] {
			return fail("duplicate sample field %q", f.Name)
		}
		seen[f.Name] = true
		if _, err := ParseFieldType(string(f.Type)); err != nil {
			return fail("field %q: %v", f.Name, err)
		}
		if f.Subfield != nil {
			if _, err := ParseFieldType(string(*f.Subfield)); err != nil {
				return fail("field %q subfield: %v", f.Name, err)
			}
		}
		if f.Type == FieldTypeList && f.Subfield == nil {
			return fail("list field %q has no subfield type", f.Name)
		}
		if f.Type != FieldTypeList && f.Subfield != nil {
			return fail("field %q declares a subfield but is not a list", f.Name)
		}
		if f.Type.Kind() == KindEmbeddedDocument && f.EmbeddedDocType == "" {
			return fail("embedded document field %q has no document type", f.Name)
		}
		if f.Type.Kind() != KindEmbeddedDocument && f.EmbeddedDocType != "" {
			return fail("field %q declares a document type but is not an embedded document", f.Name)
		}
	}
	return nil
}

// Clone returns a deep copy of the descriptor.
func (d *DatasetDescriptor) Clone() *DatasetDescriptor {
	out := *d
	out.SampleFields = make([]FieldDescriptor, len(d.SampleFields))
	for i, f := range d.SampleFields {
		out.SampleFields[i] = f
		if f.Subfield != nil {
			sub := *f.Subfield
			out.SampleFields[i].Subfield = &sub
		}
	}
	return &out
}

// SampleField returns the named sample field descriptor, if declared.
func (d *DatasetDescriptor) SampleField(name string) (FieldDescriptor, bool) {
	for _, f := range d.SampleFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// HasSampleField reports whether the descriptor declares the named field.
func (d *DatasetDescriptor) HasSampleField(name string) bool {
	_, ok := d.SampleField(name)
	return ok
}

// RemoveSampleField drops the named field from the descriptor, reporting
// whether it was present.
func (d *DatasetDescriptor) RemoveSampleField(name string) bool {
	for i, f := range d.SampleFields {
		if f.Name == name {
			d.SampleFields = append(d.SampleFields[:i], d.SampleFields[i+1:]...)
			return true
		}
	}
	return false
}
