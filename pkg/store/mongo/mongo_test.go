package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

func TestToMongo(t *testing.T) {
	row := toMongo(models.Document{"id": "s1", "filepath": "/a.mp4"})
	assert.Equal(t, bson.M{"_id": "s1", "filepath": "/a.mp4"}, row)

	row = toMongo(models.Document{"filepath": "/a.mp4"})
	_, ok := row["_id"]
	assert.False(t, ok, "documents without id must let the server assign one")
}

func TestFromMongo(t *testing.T) {
	doc := fromMongo(bson.M{"_id": "s1", "filepath": "/a.mp4"})
	assert.Equal(t, models.Document{"id": "s1", "filepath": "/a.mp4"}, doc)

	oid := bson.NewObjectID()
	doc = fromMongo(bson.M{"_id": oid})
	assert.Equal(t, oid.Hex(), doc["id"])
}

func TestBuildUpdate(t *testing.T) {
	update := buildUpdate(store.Update{
		ID:    "s1",
		Set:   map[string]any{"frames": bson.M{"n": 1}},
		Unset: []string{"stale", "tmp"},
	})
	require.NotNil(t, update)
	assert.Equal(t, bson.M{"frames": bson.M{"n": 1}}, update["$set"])
	assert.Equal(t, bson.M{"stale": "", "tmp": ""}, update["$unset"])

	assert.Nil(t, buildUpdate(store.Update{ID: "s1"}))

	setOnly := buildUpdate(store.Update{ID: "s1", Set: map[string]any{"a": 1}})
	_, hasUnset := setOnly["$unset"]
	assert.False(t, hasUnset)
}
