package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovatek/mailprofile/pkg/matching"
)

// A profile's company name must always find its way back to the key the
// same ingestion run persisted the emails under.
func TestProfileNameResolvesBackToIngestedKey(t *testing.T) {
	pipeline, store, dir := newTestPipeline(t)

	writeEml(t, dir, "01.eml",
		"max@mueller-maschinenbau.de", "vertrieb@innovatek-solutions.de",
		"Anfrage", "Mon, 07 Apr 2025 09:00:00 +0000",
		"Angebot bitte.")
	writeEml(t, dir, "02.eml",
		"anna@klein.de", "vertrieb@innovatek-solutions.de",
		"Bestellung", "Mon, 07 Apr 2025 11:00:00 +0000",
		"Bestellung über drei Stück.")

	_, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"klein_de", "mueller-maschinenbau_de"}, keys)

	// Names in the style the synthesis step emits them.
	cases := map[string]string{
		"Mueller Maschinenbau GmbH": "mueller-maschinenbau_de",
		"Müller Maschinenbau":       "mueller-maschinenbau_de",
		"Klein AG":                  "klein_de",
	}
	for name, want := range cases {
		got, ok := matching.Resolve(name, keys)
		require.True(t, ok, "no match for %q", name)
		assert.Equal(t, want, got, "wrong key for %q", name)
	}
}
