// Package ingest walks a folder of raw .eml files and rebuilds the
// per-company email store from scratch: decode, sort, deduplicate,
// attribute, persist.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/innovatek/mailprofile/pkg/attribution"
	"github.com/innovatek/mailprofile/pkg/db"
	"github.com/innovatek/mailprofile/pkg/emailstore"
	"github.com/innovatek/mailprofile/pkg/mailparse"
)

// FileFault records a raw file that was skipped. A fault never aborts the
// run; it is surfaced so the operator can look at the file.
type FileFault struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type Summary struct {
	RunID     string
	Processed int
	Persisted map[string]int
	Faults    []FileFault
}

type Pipeline struct {
	logger      *log.Logger
	decoder     *mailparse.Decoder
	store       *emailstore.Store
	history     *db.Store
	homeDomains []string
}

// NewPipeline wires the pipeline. history may be nil when no run
// bookkeeping is wanted, for example in tests.
func NewPipeline(logger *log.Logger, decoder *mailparse.Decoder, store *emailstore.Store, history *db.Store, homeDomains []string) (*Pipeline, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	return &Pipeline{
		logger:      logger,
		decoder:     decoder,
		store:       store,
		history:     history,
		homeDomains: homeDomains,
	}, nil
}

// Run rebuilds the store from dir. Each persisted company document is a
// full overwrite; reprocessing an unchanged folder is idempotent.
func (p *Pipeline) Run(ctx context.Context, dir string) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		Persisted: map[string]int{},
	}

	files, err := listEmlFiles(dir)
	if err != nil {
		return summary, fmt.Errorf("list %s: %w", dir, err)
	}

	var messages []mailparse.Message
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			p.logger.Warn("Skipping unreadable file", "filename", name, "error", err)
			summary.Faults = append(summary.Faults, FileFault{Filename: name, Reason: err.Error()})
			continue
		}
		messages = append(messages, p.decoder.Decode(name, raw))
	}
	summary.Processed = len(messages)

	// Oldest first; messages without a date sort as earliest. The sort is
	// stable so equal dates keep file-name order.
	sort.SliceStable(messages, func(i, j int) bool {
		di, dj := messages[i].Date, messages[j].Date
		switch {
		case di == nil:
			return dj != nil
		case dj == nil:
			return false
		default:
			return di.Before(*dj)
		}
	})

	// Content-based dedup: identical cleaned bodies collapse to the
	// earliest message, whatever file they came from.
	seen := map[[32]byte]bool{}
	groups := map[string][]emailstore.Email{}
	for _, m := range messages {
		digest := sha256.Sum256([]byte(m.Body))
		if seen[digest] {
			continue
		}
		seen[digest] = true

		company := attribution.Attribute(m.From, m.Recipients, p.homeDomains)
		groups[company] = append(groups[company], emailstore.Email{
			Filename:  m.Filename,
			Date:      m.Date,
			FromEmail: m.From,
			Subject:   m.Subject,
			Body:      m.Body,
		})
	}

	companies := lo.Keys(groups)
	sort.Strings(companies)
	for _, company := range companies {
		emails := groups[company]
		key := attribution.SafeKey(company)
		if err := p.store.Write(key, emails); err != nil {
			return summary, fmt.Errorf("persist %s: %w", key, err)
		}
		summary.Persisted[company] = len(emails)
		p.logger.Info("Persisted company emails", "company", company, "count", len(emails))
	}

	if p.history != nil {
		if err := p.history.RecordRun(ctx, toRunRecord(summary)); err != nil {
			p.logger.Warn("Failed to record ingest run", "error", err)
		}
	}
	return summary, nil
}

func toRunRecord(s Summary) db.IngestRun {
	total := 0
	for _, n := range s.Persisted {
		total += n
	}
	faults := make([]db.IngestFault, 0, len(s.Faults))
	for _, f := range s.Faults {
		faults = append(faults, db.IngestFault{Filename: f.Filename, Reason: f.Reason})
	}
	return db.IngestRun{
		ID:        s.RunID,
		Processed: s.Processed,
		Persisted: total,
		Companies: len(s.Persisted),
		Faults:    faults,
	}
}

func listEmlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".eml") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
