package mailparse

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jaytaylor/html2text"
	"github.com/mnako/letters"
	"golang.org/x/text/encoding/htmlindex"
)

// Message is one raw email reduced to the fields the pipeline works with.
// Every field degrades independently: a malformed header leaves its field
// at the zero value instead of failing the whole message.
type Message struct {
	Filename   string
	Date       *time.Time
	From       string
	Recipients []string
	Subject    string
	Body       string
}

type Decoder struct {
	logger *log.Logger
	marker string
}

func NewDecoder(logger *log.Logger, replyMarker string) (*Decoder, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	return &Decoder{logger: logger, marker: replyMarker}, nil
}

// Decode never fails. It parses with letters first and falls back to a
// permissive manual parse when letters rejects the message.
func (d *Decoder) Decode(filename string, raw []byte) Message {
	msg := Message{Filename: filename}

	email, err := letters.ParseEmail(bytes.NewReader(raw))
	if err != nil {
		d.logger.Warn("Strict parse failed, using permissive parse", "filename", filename, "error", err)
		d.decodePermissive(raw, &msg)
	} else {
		if !email.Headers.Date.IsZero() {
			t := email.Headers.Date
			msg.Date = &t
		}
		if len(email.Headers.From) > 0 && email.Headers.From[0] != nil {
			msg.From = NormalizeAddress(email.Headers.From[0].Address)
		}
		for _, a := range append(email.Headers.To, email.Headers.Cc...) {
			if a != nil && a.Address != "" {
				msg.Recipients = append(msg.Recipients, NormalizeAddress(a.Address))
			}
		}
		msg.Subject = email.Headers.Subject
		body := email.Text
		if body == "" && email.HTML != "" {
			if t, err := html2text.FromString(email.HTML, html2text.Options{OmitLinks: true, TextOnly: true}); err == nil {
				body = t
			}
		}
		msg.Body = body
	}

	msg.Body = CleanBody(msg.Body, d.marker)
	return msg
}

func (d *Decoder) decodePermissive(raw []byte, out *Message) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		// Not even header/body shaped. Keep whatever text survives a
		// lossy decode so the message still shows up downstream.
		out.Body = strings.ToValidUTF8(string(raw), "")
		return
	}

	h := m.Header
	if date, err := mail.ParseDate(h.Get("Date")); err == nil {
		out.Date = &date
	}

	if addr, err := mail.ParseAddress(h.Get("From")); err == nil {
		out.From = NormalizeAddress(addr.Address)
	}

	for _, key := range []string{"To", "Cc"} {
		if h.Get(key) == "" {
			continue
		}
		addrs, err := h.AddressList(key)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			out.Recipients = append(out.Recipients, NormalizeAddress(a.Address))
		}
	}

	out.Subject = decodeSubject(h.Get("Subject"))
	out.Body = extractBody(h, m.Body)
}

// decodeSubject concatenates the decoded parts of an encoded-word subject.
// A part with a broken or unknown charset degrades to lossy UTF-8 instead
// of failing the header.
func decodeSubject(raw string) string {
	if raw == "" {
		return ""
	}
	dec := mime.WordDecoder{CharsetReader: charsetReader}
	s, err := dec.DecodeHeader(raw)
	if err != nil {
		return strings.ToValidUTF8(raw, "")
	}
	return s
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		b, _ := io.ReadAll(input)
		return strings.NewReader(strings.ToValidUTF8(string(b), "")), nil
	}
	return enc.NewDecoder().Reader(input), nil
}

func extractBody(h mail.Header, body io.Reader) string {
	mt, params, _ := mime.ParseMediaType(h.Get("Content-Type"))

	if strings.HasPrefix(mt, "multipart/") && params["boundary"] != "" {
		mr := multipart.NewReader(body, params["boundary"])
		var plain, html string
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			pt, pparams, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
			b, _ := io.ReadAll(transferDecoder(p, p.Header.Get("Content-Transfer-Encoding")))
			switch {
			case strings.HasPrefix(pt, "text/plain"):
				plain += decodeCharsetBytes(b, pparams["charset"])
			case strings.HasPrefix(pt, "text/html") && html == "":
				if t, err := html2text.FromString(decodeCharsetBytes(b, pparams["charset"]), html2text.Options{OmitLinks: true, TextOnly: true}); err == nil {
					html = t
				}
			}
			_ = p.Close()
		}
		if plain != "" {
			return plain
		}
		return html
	}

	b, _ := io.ReadAll(transferDecoder(body, h.Get("Content-Transfer-Encoding")))
	text := decodeCharsetBytes(b, params["charset"])
	if strings.Contains(strings.ToLower(mt), "html") {
		if t, err := html2text.FromString(text, html2text.Options{OmitLinks: true, TextOnly: true}); err == nil {
			return t
		}
	}
	return text
}

func transferDecoder(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

// decodeCharsetBytes decodes with the declared charset, defaulting to UTF-8
// and dropping invalid bytes rather than erroring.
func decodeCharsetBytes(b []byte, charset string) string {
	if charset == "" {
		return strings.ToValidUTF8(string(b), "")
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	return strings.ToValidUTF8(string(decoded), "")
}

// NormalizeAddress lower-cases the domain part of an email address. The
// local part keeps its case.
func NormalizeAddress(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr
	}
	return addr[:at+1] + strings.ToLower(addr[at+1:])
}

// CleanBody keeps only the newest reply: everything at and after the first
// occurrence of the quoted-reply marker is discarded.
func CleanBody(text, marker string) string {
	if marker != "" {
		if i := strings.Index(text, marker); i >= 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text)
}
