package storage

import (
	"testing"

	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	store := New()
	a := scan.NewSession("a", scan.Deps{})
	b := scan.NewSession("b", scan.Deps{})
	store.Set("b", b)
	store.Set("a", a)

	got, ok := store.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 2, store.Len())

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID())
	assert.Equal(t, "b", list[1].ID())

	removed, ok := store.Delete("a")
	require.True(t, ok)
	assert.Same(t, a, removed)
	_, ok = store.Get("a")
	assert.False(t, ok)

	_, ok = store.Delete("missing")
	assert.False(t, ok)
}
