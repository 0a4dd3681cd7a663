package registry

import (
	"context"
	"testing"

	"github.com/distill-go/distill/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRegistry_StoreGet(t *testing.T) {
	ctx := context.Background()
	reg, err := NewFileRegistry(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, reg.Store(ctx, testCorpus("c1", "1.0.0")))
	got, err := reg.Get(ctx, "c1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, []string{"hallo"}, got.Target)
}

func TestFileRegistry_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg, err := NewFileRegistry(dir)
	require.NoError(t, err)
	require.NoError(t, reg.Store(ctx, testCorpus("c1", "1.0.0")))
	require.NoError(t, reg.Promote(ctx, "c1", "1.0.0", StageProduction))

	reopened, err := NewFileRegistry(dir)
	require.NoError(t, err)
	prod, err := reopened.GetProduction(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", prod.Version)
}

func TestFileRegistry_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	reg, err := NewFileRegistry(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, reg.Store(ctx, testCorpus("c1", "1.0.0")))
	require.NoError(t, reg.Delete(ctx, "c1", "1.0.0"))
	_, err = reg.Get(ctx, "c1", "1.0.0")
	assert.ErrorIs(t, err, core.ErrCorpusNotFound)
	err = reg.Promote(ctx, "c1", "1.0.0", StageProduction)
	assert.ErrorIs(t, err, core.ErrCorpusNotFound)
}

func TestFileRegistry_List(t *testing.T) {
	ctx := context.Background()
	reg, err := NewFileRegistry(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, reg.Store(ctx, testCorpus("c1", "1.0.0")))
	require.NoError(t, reg.Store(ctx, testCorpus("c2", "1.0.0")))

	all, err := reg.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := reg.List(ctx, Filter{IDs: []string{"c2"}})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "c2", only[0].ID)
}
