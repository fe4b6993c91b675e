package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovatek/mailprofile/pkg/emailstore"
)

func newTestServer(t *testing.T) (*server, *emailstore.Store) {
	t.Helper()
	logger := log.New(os.Stdout)

	emails, err := emailstore.NewStore(logger, t.TempDir())
	require.NoError(t, err)

	srv := &server{
		logger:     logger,
		emails:     emails,
		emailCache: emailstore.NewCache(emails),
	}
	return srv, emails
}

func getCompanyEmails(t *testing.T, srv *server, name string) map[string]any {
	t.Helper()
	router := chi.NewRouter()
	router.Get("/api/companies/{name}/emails", srv.companyEmails)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/"+name+"/emails", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCompanyEmailsResolvesThroughCache(t *testing.T) {
	srv, emails := newTestServer(t)

	require.NoError(t, emails.Write("mueller-maschinenbau_de", []emailstore.Email{
		{Filename: "a.eml", FromEmail: "max@mueller-maschinenbau.de", Subject: "Anfrage", Body: "Hallo"},
	}))

	body := getCompanyEmails(t, srv, "Mueller-Maschinenbau-GmbH")
	assert.Equal(t, "mueller-maschinenbau_de", body["key"])
	assert.Len(t, body["emails"], 1)

	// A document written behind the cache stays invisible until the
	// cache is invalidated.
	require.NoError(t, emails.Write("klein_de", []emailstore.Email{
		{Filename: "b.eml", FromEmail: "anna@klein.de", Subject: "Bestellung", Body: "Moin"},
	}))

	body = getCompanyEmails(t, srv, "Klein-AG")
	assert.Nil(t, body["key"])
	assert.Empty(t, body["emails"])

	srv.emailCache.Invalidate()
	body = getCompanyEmails(t, srv, "Klein-AG")
	assert.Equal(t, "klein_de", body["key"])
	assert.Len(t, body["emails"], 1)
}

func TestCompanyEmailsNoMatchYieldsEmptyHistory(t *testing.T) {
	srv, emails := newTestServer(t)
	require.NoError(t, emails.Write("klein_de", nil))

	body := getCompanyEmails(t, srv, "Schmidt-Stahlbau")
	assert.Nil(t, body["key"])
	assert.Empty(t, body["emails"])
}
