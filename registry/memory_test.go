package registry

import (
	"context"
	"testing"

	"github.com/distill-go/distill/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCorpus(id, version string) *core.Corpus {
	return &core.Corpus{
		ID: id, Version: version,
		Source: []string{"hello"},
		Target: []string{"hallo"},
	}
}

func TestMemoryRegistry_StoreGet(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	err := reg.Store(ctx, testCorpus("c1", "1.0.0"))
	require.NoError(t, err)
	got, err := reg.Get(ctx, "c1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, []string{"hello"}, got.Source)
}

func TestMemoryRegistry_GetNotFound(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	_, err := reg.Get(ctx, "missing", "1.0.0")
	assert.ErrorIs(t, err, core.ErrCorpusNotFound)
}

func TestMemoryRegistry_PromoteGetProduction(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Store(ctx, testCorpus("c1", "1.0.0")))
	require.NoError(t, reg.Promote(ctx, "c1", "1.0.0", StageProduction))
	prod, err := reg.GetProduction(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", prod.Version)
}

func TestMemoryRegistry_ListVersions(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	reg.Store(ctx, testCorpus("c1", "1.0.0"))
	reg.Store(ctx, testCorpus("c1", "2.0.0"))
	vers, err := reg.ListVersions(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, vers, 2)
	assert.Equal(t, 1, vers[0].Pairs)
}

func TestMemoryRegistry_ListByStageAndTags(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Store(ctx, testCorpus("c1", "1.0.0")))
	require.NoError(t, reg.Store(ctx, testCorpus("c2", "1.0.0")))
	require.NoError(t, reg.Promote(ctx, "c1", "1.0.0", StageStaging))
	require.NoError(t, reg.Tag(ctx, "c2", "1.0.0", []string{"dev-set"}))

	staged, err := reg.List(ctx, Filter{Stage: StageStaging})
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, "c1", staged[0].ID)

	tagged, err := reg.List(ctx, Filter{Tags: []string{"dev-set"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "c2", tagged[0].ID)
}

func TestMemoryRegistry_Delete(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Store(ctx, testCorpus("c1", "1.0.0")))
	require.NoError(t, reg.Promote(ctx, "c1", "1.0.0", StageProduction))
	require.NoError(t, reg.Delete(ctx, "c1", "1.0.0"))
	_, err := reg.Get(ctx, "c1", "1.0.0")
	assert.ErrorIs(t, err, core.ErrCorpusNotFound)
	_, err = reg.GetProduction(ctx, "c1")
	assert.ErrorIs(t, err, core.ErrCorpusNotFound)
}
