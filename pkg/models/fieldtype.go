package models

import "fmt"

// MediaType identifies the kind of media a dataset holds. It determines
// whether the dataset carries a frame collection alongside its samples.
type MediaType string

const (
	// MediaTypeImage marks datasets whose samples are standalone images.
	MediaTypeImage MediaType = "image"

	// MediaTypeVideo marks datasets whose samples are videos backed by a
	// frame collection.
	MediaTypeVideo MediaType = "video"
)

// ParseMediaType validates s and returns it as a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaTypeImage, MediaTypeVideo:
		return MediaType(s), nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// FieldType is the closed set of types a sample field may declare.
// Unknown tags are rejected at parse time so that a descriptor read from
// storage can never carry a type this package does not understand.
type FieldType string

const (
	FieldTypeString           FieldType = "string"
	FieldTypeBool             FieldType = "bool"
	FieldTypeInt              FieldType = "int"
	FieldTypeFloat            FieldType = "float"
	FieldTypeDateTime         FieldType = "datetime"
	FieldTypeDict             FieldType = "dict"
	FieldTypeList             FieldType = "list"
	FieldTypeEmbeddedDocument FieldType = "embedded_document"
	FieldTypeReference        FieldType = "reference"
)

// FieldKind groups field types by how their values are stored.
type FieldKind int

const (
	// KindPrimitive covers scalar and container types with no schema of
	// their own.
	KindPrimitive FieldKind = iota

	// KindEmbeddedDocument covers fields holding a nested document whose
	// shape is named by the descriptor's embedded document type.
	KindEmbeddedDocument

	// KindReference covers fields holding a link to a document in another
	// collection.
	KindReference
)

// ParseFieldType validates s and returns it as a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch FieldType(s) {
	case FieldTypeString, FieldTypeBool, FieldTypeInt, FieldTypeFloat,
		FieldTypeDateTime, FieldTypeDict, FieldTypeList,
		FieldTypeEmbeddedDocument, FieldTypeReference:
		return FieldType(s), nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}

// Kind reports which storage family the field type belongs to.
func (t FieldType) Kind() FieldKind {
	switch t {
	case FieldTypeEmbeddedDocument:
		return KindEmbeddedDocument
	case FieldTypeReference:
		return KindReference
	default:
		return KindPrimitive
	}
}
