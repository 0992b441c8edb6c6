package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldType(t *testing.T) {
	for _, s := range []string{
		"string", "bool", "int", "float", "datetime", "dict", "list",
		"embedded_document", "reference",
	} {
		ft, err := ParseFieldType(s)
		require.NoError(t, err, s)
		assert.Equal(t, FieldType(s), ft)
	}

	_, err := ParseFieldType("tensor")
	assert.EqualError(t, err, `unknown field type "tensor"`)
}

func TestFieldTypeKind(t *testing.T) {
	assert.Equal(t, KindPrimitive, FieldTypeString.Kind())
	assert.Equal(t, KindPrimitive, FieldTypeList.Kind())
	assert.Equal(t, KindEmbeddedDocument, FieldTypeEmbeddedDocument.Kind())
	assert.Equal(t, KindReference, FieldTypeReference.Kind())
}

func TestParseMediaType(t *testing.T) {
	mt, err := ParseMediaType("video")
	require.NoError(t, err)
	assert.Equal(t, MediaTypeVideo, mt)

	_, err = ParseMediaType("audio")
	assert.Error(t, err)
}

func TestNewDatasetDescriptor(t *testing.T) {
	video := NewDatasetDescriptor("roadside", MediaTypeVideo, 3)
	require.NoError(t, video.Validate())
	assert.Equal(t, 3, video.SchemaVersion)
	assert.NotEmpty(t, video.SampleCollectionName)
	assert.NotEmpty(t, video.FrameCollectionName)
	assert.NotEqual(t, video.SampleCollectionName, video.FrameCollectionName)

	frames, ok := video.SampleField(FieldFrames)
	require.True(t, ok)
	assert.Equal(t, FieldTypeEmbeddedDocument, frames.Type)
	assert.Equal(t, DocTypeFrames, frames.EmbeddedDocType)

	image := NewDatasetDescriptor("stills", MediaTypeImage, 3)
	require.NoError(t, image.Validate())
	assert.Empty(t, image.FrameCollectionName)
	assert.False(t, image.HasSampleField(FieldFrames))
}

func TestDatasetDescriptorValidate(t *testing.T) {
	base := func() *DatasetDescriptor {
		return &DatasetDescriptor{
			Name:                 "roadside",
			MediaType:            MediaTypeVideo,
			SampleCollectionName: "samples_a",
			FrameCollectionName:  "frames_a",
			SampleFields: []FieldDescriptor{
				{Name: "filepath", Type: FieldTypeString},
				{Name: FieldFrames, Type: FieldTypeEmbeddedDocument, EmbeddedDocType: DocTypeFrames},
			},
			SchemaVersion: 3,
		}
	}

	require.NoError(t, base().Validate())

	t.Run("empty media type is legacy, not invalid", func(t *testing.T) {
		d := base()
		d.MediaType = ""
		assert.NoError(t, d.Validate())
	})

	cases := []struct {
		name   string
		mutate func(*DatasetDescriptor)
		want   string
	}{
		{
			name:   "empty name",
			mutate: func(d *DatasetDescriptor) { d.Name = "" },
			want:   "name is empty",
		},
		{
			name:   "unknown media type",
			mutate: func(d *DatasetDescriptor) { d.MediaType = "audio" },
			want:   `unknown media type "audio"`,
		},
		{
			name:   "empty sample collection",
			mutate: func(d *DatasetDescriptor) { d.SampleCollectionName = "" },
			want:   "sample collection name is empty",
		},
		{
			name:   "negative version",
			mutate: func(d *DatasetDescriptor) { d.SchemaVersion = -1 },
			want:   "schema version -1 is negative",
		},
		{
			name: "duplicate field",
			mutate: func(d *DatasetDescriptor) {
				d.SampleFields = append(d.SampleFields, FieldDescriptor{Name: "filepath", Type: FieldTypeString})
			},
			want: `duplicate sample field "filepath"`,
		},
		{
			name: "unknown field type",
			mutate: func(d *DatasetDescriptor) {
				d.SampleFields[0].Type = "tensor"
			},
			want: `field "filepath": unknown field type "tensor"`,
		},
		{
			name: "list without subfield",
			mutate: func(d *DatasetDescriptor) {
				d.SampleFields[0] = FieldDescriptor{Name: "tags", Type: FieldTypeList}
			},
			want: `list field "tags" has no subfield type`,
		},
		{
			name: "subfield on a non-list",
			mutate: func(d *DatasetDescriptor) {
				sub := FieldTypeString
				d.SampleFields[0].Subfield = &sub
			},
			want: `field "filepath" declares a subfield but is not a list`,
		},
		{
			name: "embedded document without doc type",
			mutate: func(d *DatasetDescriptor) {
				d.SampleFields[1].EmbeddedDocType = ""
			},
			want: `embedded document field "frames" has no document type`,
		},
		{
			name: "doc type on a primitive",
			mutate: func(d *DatasetDescriptor) {
				d.SampleFields[0].EmbeddedDocType = DocTypeFrames
			},
			want: `field "filepath" declares a document type but is not an embedded document`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := base()
			tc.mutate(d)
			err := d.Validate()
			require.Error(t, err)

			var serr *SchemaError
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, serr.Reason, tc.want)
		})
	}
}

func TestDatasetDescriptorClone(t *testing.T) {
	sub := FieldTypeString
	d := &DatasetDescriptor{
		Name:                 "roadside",
		MediaType:            MediaTypeVideo,
		SampleCollectionName: "samples_a",
		SampleFields: []FieldDescriptor{
			{Name: "tags", Type: FieldTypeList, Subfield: &sub},
		},
		SchemaVersion: 1,
	}

	c := d.Clone()
	require.Equal(t, d, c)

	c.SampleFields[0].Name = "labels"
	*c.SampleFields[0].Subfield = FieldTypeInt
	c.SchemaVersion = 9

	assert.Equal(t, "tags", d.SampleFields[0].Name)
	assert.Equal(t, FieldTypeString, *d.SampleFields[0].Subfield)
	assert.Equal(t, 1, d.SchemaVersion)
}

func TestRemoveSampleField(t *testing.T) {
	d := NewDatasetDescriptor("roadside", MediaTypeVideo, 3)

	assert.True(t, d.RemoveSampleField(FieldFrames))
	assert.False(t, d.HasSampleField(FieldFrames))
	assert.False(t, d.RemoveSampleField(FieldFrames))
	assert.True(t, d.HasSampleField("filepath"))
}
