package mailparse

import (
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMarker = "-----Ursprüngliche Nachricht-----"

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := NewDecoder(log.New(os.Stdout), testMarker)
	require.NoError(t, err)
	return d
}

func TestDecodeSimpleMessage(t *testing.T) {
	raw := []byte("From: Max Mustermann <max@Mueller-Maschinenbau.DE>\r\n" +
		"To: vertrieb@innovatek-solutions.de\r\n" +
		"Cc: support@innovatek-solutions.de\r\n" +
		"Subject: Anfrage Ersatzteile\r\n" +
		"Date: Mon, 07 Apr 2025 14:31:02 +0000\r\n" +
		"\r\n" +
		"Hallo, wir brauchen Ersatzteile.\r\n")

	msg := newTestDecoder(t).Decode("anfrage.eml", raw)

	assert.Equal(t, "anfrage.eml", msg.Filename)
	assert.Equal(t, "max@mueller-maschinenbau.de", msg.From)
	assert.Equal(t, []string{"vertrieb@innovatek-solutions.de", "support@innovatek-solutions.de"}, msg.Recipients)
	assert.Equal(t, "Anfrage Ersatzteile", msg.Subject)
	assert.Equal(t, "Hallo, wir brauchen Ersatzteile.", msg.Body)
	require.NotNil(t, msg.Date)
	assert.Equal(t, time.Date(2025, 4, 7, 14, 31, 2, 0, time.UTC).Unix(), msg.Date.Unix())
}

func TestDecodeMixedCharsetSubject(t *testing.T) {
	// One encoded-word in ISO-8859-1, one in UTF-8, within the same header.
	raw := []byte("From: max@example.com\r\n" +
		"To: info@example.org\r\n" +
		"Subject: =?ISO-8859-1?Q?Gr=FC=DFe?= =?UTF-8?B?IMOEbmRlcnVuZw==?=\r\n" +
		"Date: Mon, 07 Apr 2025 14:31:02 +0000\r\n" +
		"\r\n" +
		"Inhalt\r\n")

	msg := newTestDecoder(t).Decode("subject.eml", raw)
	assert.Equal(t, "Grüße Änderung", msg.Subject)
}

func TestDecodeMultipartKeepsPlainText(t *testing.T) {
	raw := []byte("From: max@example.com\r\n" +
		"To: info@example.org\r\n" +
		"Subject: Angebot\r\n" +
		"Date: Mon, 07 Apr 2025 14:31:02 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Nur dieser Text.\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><b>Nur dieser Text.</b></body></html>\r\n" +
		"--b1--\r\n")

	msg := newTestDecoder(t).Decode("multipart.eml", raw)
	assert.Equal(t, "Nur dieser Text.", msg.Body)
}

func TestDecodeMissingDate(t *testing.T) {
	raw := []byte("From: max@example.com\r\n" +
		"To: info@example.org\r\n" +
		"Subject: Ohne Datum\r\n" +
		"\r\n" +
		"Inhalt\r\n")

	msg := newTestDecoder(t).Decode("nodate.eml", raw)
	assert.Nil(t, msg.Date)
	assert.Equal(t, "Inhalt", msg.Body)
}

func TestDecodeGarbageNeverPanics(t *testing.T) {
	msg := newTestDecoder(t).Decode("garbage.eml", []byte{0xff, 0xfe, 0x00, 0x41})
	assert.Equal(t, "garbage.eml", msg.Filename)
	assert.Empty(t, msg.From)
	assert.Nil(t, msg.Date)
}

func TestCleanBodyStripsQuotedReply(t *testing.T) {
	body := "Danke für das Angebot.\n\n" + testMarker + "\nVon: vertrieb@innovatek-solutions.de\nAltes Zeug"
	got := CleanBody(body, testMarker)
	assert.Equal(t, "Danke für das Angebot.", got)
	assert.NotContains(t, got, testMarker)
}

func TestCleanBodyWithoutMarkerTrimsOnly(t *testing.T) {
	assert.Equal(t, "Hallo Welt", CleanBody("  Hallo Welt \n", testMarker))
}

func TestCleanBodyMarkerAtStartYieldsEmpty(t *testing.T) {
	assert.Equal(t, "", CleanBody(testMarker+"\nalles zitiert", testMarker))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "Max@mueller-gmbh.de", NormalizeAddress("Max@MUELLER-GMBH.DE"))
	assert.Equal(t, "kein-at-zeichen", NormalizeAddress("kein-at-zeichen"))
}
