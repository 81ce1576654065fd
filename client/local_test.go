// client/local_test.go
package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/tree"
)

func TestLocalStoreDraftLifecycle(t *testing.T) {
	local := newTestLocalStore(t)

	d, err := local.Draft("n1")
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, local.SaveDraft("n1", Draft{Content: "wip", Title: "untitled"}))
	d, err = local.Draft("n1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "wip", d.Content)
	assert.Equal(t, "untitled", d.Title)

	require.NoError(t, local.DeleteDraft("n1"))
	d, err = local.Draft("n1")
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, local.DeleteDraft("n1"), "deleting an absent draft is fine")
}

func TestLocalStoreNoteCache(t *testing.T) {
	local := newTestLocalStore(t)

	n, err := local.CachedNote("n1")
	require.NoError(t, err)
	assert.Nil(t, n)

	require.NoError(t, local.CacheNote(domain.Note{ID: "n1", Title: "alpha", Content: "body"}))
	n, err = local.CachedNote("n1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "alpha", n.Title)

	require.NoError(t, local.DeleteCachedNote("n1"))
	n, err = local.CachedNote("n1")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestLocalStoreTreeCache(t *testing.T) {
	local := newTestLocalStore(t)

	cached, err := local.CachedTree()
	require.NoError(t, err)
	assert.Nil(t, cached)

	stored := domain.NewTree()
	stored, err = tree.AddItem(stored, "a", stored.RootID)
	require.NoError(t, err)
	require.NoError(t, local.CacheTree(stored))

	cached, err = local.CachedTree()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Contains(t, cached.Items, "a")
	assert.Equal(t, stored.RootID, cached.RootID)
}
