package emailstore

import (
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(log.New(os.Stdout), t.TempDir())
	require.NoError(t, err)
	return store
}

func TestWriteLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	date := time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	emails := []Email{
		{Filename: "a.eml", Date: &date, FromEmail: "max@klein.de", Subject: "Anfrage", Body: "Hallo"},
		{Filename: "b.eml", Date: nil, FromEmail: "anna@klein.de", Subject: "Nachtrag", Body: "Noch etwas"},
	}
	require.NoError(t, store.Write("klein_de", emails))

	got, err := store.Load("klein_de")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.eml", got[0].Filename)
	require.NotNil(t, got[0].Date)
	assert.True(t, got[0].Date.Equal(date))
	assert.Nil(t, got[1].Date)
}

func TestKeysSorted(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Write("zeta_de", nil))
	require.NoError(t, store.Write("alpha_de", nil))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha_de", "zeta_de"}, keys)
}

func TestWriteOverwritesWholesale(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Write("klein_de", []Email{{Filename: "old.eml", Body: "alt"}}))
	require.NoError(t, store.Write("klein_de", []Email{{Filename: "new.eml", Body: "neu"}}))

	got, err := store.Load("klein_de")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new.eml", got[0].Filename)
}

func TestLoadAllSkipsCorruptDocument(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Write("klein_de", []Email{{Filename: "a.eml"}}))
	require.NoError(t, os.WriteFile(store.path("kaputt_de"), []byte("{nicht json"), 0o644))

	all, err := store.LoadAll()
	require.NoError(t, err)
	assert.Contains(t, all, "klein_de")
	assert.NotContains(t, all, "kaputt_de")
}

func TestDeleteAll(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Write("klein_de", nil))
	require.NoError(t, store.DeleteAll())

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCacheInvalidation(t *testing.T) {
	store := newTestStore(t)
	cache := NewCache(store)

	require.NoError(t, store.Write("klein_de", []Email{{Filename: "a.eml"}}))

	all, gen, err := cache.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// A write behind the cache's back is invisible until invalidation.
	require.NoError(t, store.Write("neu_de", []Email{{Filename: "b.eml"}}))
	all, _, err = cache.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	cache.Invalidate()
	all, gen2, err := cache.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Greater(t, gen2, gen)
}
