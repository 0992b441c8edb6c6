package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framebase/framebase/pkg/migrate"
)

func noopTransform(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
	return &migrate.Changes{Descriptor: ds.Descriptor}, nil
}

func noopRevision(version int, name string) *migrate.Revision {
	return &migrate.Revision{
		Version: version,
		Name:    name,
		Up:      noopTransform,
		Down:    noopTransform,
	}
}

func TestRegistryRegister(t *testing.T) {
	r := migrate.NewRegistry()

	require.NoError(t, r.Register(noopRevision(1, "first")))

	err := r.Register(noopRevision(1, "duplicate"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, r.Register(noopRevision(0, "too-low")))
	assert.Error(t, r.Register(&migrate.Revision{Version: 2, Name: "half", Up: noopTransform}))

	assert.Panics(t, func() { r.MustRegister(noopRevision(1, "dup-again")) })
}

func TestRegistryVersions(t *testing.T) {
	r := migrate.NewRegistry()
	assert.Zero(t, r.Latest())
	assert.Empty(t, r.Versions())

	r.MustRegister(noopRevision(3, "third"))
	r.MustRegister(noopRevision(1, "first"))
	r.MustRegister(noopRevision(2, "second"))

	assert.Equal(t, 3, r.Latest())
	assert.Equal(t, []int{1, 2, 3}, r.Versions())

	rev, ok := r.Revision(2)
	require.True(t, ok)
	assert.Equal(t, "second", rev.Name)

	_, ok = r.Revision(9)
	assert.False(t, ok)
}

func TestResolvePath(t *testing.T) {
	r := migrate.NewRegistry()
	for v := 1; v <= 3; v++ {
		r.MustRegister(noopRevision(v, "rev"))
	}

	t.Run("same version means no steps", func(t *testing.T) {
		steps, err := r.ResolvePath(2, 2)
		require.NoError(t, err)
		assert.Empty(t, steps)
	})

	t.Run("upgrade walks versions ascending", func(t *testing.T) {
		steps, err := r.ResolvePath(0, 3)
		require.NoError(t, err)
		require.Len(t, steps, 3)
		for i, step := range steps {
			assert.Equal(t, migrate.DirectionUp, step.Direction)
			assert.Equal(t, i+1, step.Revision.Version)
			assert.Equal(t, i+1, step.Target())
		}
	})

	t.Run("downgrade walks versions descending", func(t *testing.T) {
		steps, err := r.ResolvePath(3, 0)
		require.NoError(t, err)
		require.Len(t, steps, 3)
		for i, step := range steps {
			assert.Equal(t, migrate.DirectionDown, step.Direction)
			assert.Equal(t, 3-i, step.Revision.Version)
			assert.Equal(t, 2-i, step.Target())
		}
	})

	t.Run("negative versions are rejected", func(t *testing.T) {
		_, err := r.ResolvePath(-1, 2)
		assert.Error(t, err)
	})
}

func TestResolvePathMissingRevision(t *testing.T) {
	r := migrate.NewRegistry()
	r.MustRegister(noopRevision(1, "first"))
	r.MustRegister(noopRevision(3, "third"))

	_, err := r.ResolvePath(0, 3)
	var missing *migrate.MissingRevisionError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 2, missing.Version)
	assert.Equal(t, migrate.DirectionUp, missing.Direction)

	_, err = r.ResolvePath(3, 1)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 2, missing.Version)
	assert.Equal(t, migrate.DirectionDown, missing.Direction)

	// Paths past the newest revision fail the same way.
	_, err = r.ResolvePath(3, 4)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 4, missing.Version)
}

func TestStepTransform(t *testing.T) {
	up := func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
		return &migrate.Changes{RemoveFields: []string{"up"}}, nil
	}
	down := func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
		return &migrate.Changes{RemoveFields: []string{"down"}}, nil
	}
	rev := &migrate.Revision{Version: 1, Name: "probe", Up: up, Down: down}

	c, err := migrate.Step{Revision: rev, Direction: migrate.DirectionUp}.Transform()(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"up"}, c.RemoveFields)

	c, err = migrate.Step{Revision: rev, Direction: migrate.DirectionDown}.Transform()(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"down"}, c.RemoveFields)
}
