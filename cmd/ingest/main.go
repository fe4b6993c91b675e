package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"

	"github.com/innovatek/mailprofile/pkg/ai"
	"github.com/innovatek/mailprofile/pkg/config"
	"github.com/innovatek/mailprofile/pkg/db"
	"github.com/innovatek/mailprofile/pkg/emailstore"
	"github.com/innovatek/mailprofile/pkg/ingest"
	"github.com/innovatek/mailprofile/pkg/mailparse"
	"github.com/innovatek/mailprofile/pkg/profiler"
	"github.com/innovatek/mailprofile/pkg/profilestore"
)

type options struct {
	Dir      string `short:"d" long:"dir" description:"Folder of .eml files (defaults to the configured eml path)"`
	Profiles bool   `short:"p" long:"profiles" description:"Synthesize customer profiles after ingesting"`
	Wipe     bool   `long:"wipe" description:"Delete all raw .eml files and derived documents first"`
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
		TimeFormat:      time.Kitchen,
	})

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	envs, _ := config.LoadConfig(false)
	dir := opts.Dir
	if dir == "" {
		dir = envs.EmlPath
	}

	emails, err := emailstore.NewStore(logger, envs.EmailJSONPath)
	if err != nil {
		logger.Fatal("Unable to create email store", "error", err)
	}
	profiles, err := profilestore.NewStore(logger, envs.ProfileJSONPath)
	if err != nil {
		logger.Fatal("Unable to create profile store", "error", err)
	}

	history, err := db.NewStore(envs.DBPath)
	if err != nil {
		logger.Fatal("Unable to open run history", "error", err)
	}
	defer func() { _ = history.Close() }()

	ctx := context.Background()

	if opts.Wipe {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Fatal("Unable to read eml folder", "dir", dir, "error", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
		if err := emails.DeleteAll(); err != nil {
			logger.Fatal("Unable to delete email documents", "error", err)
		}
		if _, err := profiles.DeleteAll(); err != nil {
			logger.Fatal("Unable to delete profiles", "error", err)
		}
		logger.Info("Wiped raw emails and derived documents", "dir", dir)
	}

	decoder, err := mailparse.NewDecoder(logger, envs.ReplyMarker)
	if err != nil {
		logger.Fatal("Unable to create decoder", "error", err)
	}
	pipeline, err := ingest.NewPipeline(logger, decoder, emails, history, envs.HomeDomains)
	if err != nil {
		logger.Fatal("Unable to create pipeline", "error", err)
	}

	summary, err := pipeline.Run(ctx, dir)
	if err != nil {
		logger.Fatal("Ingestion failed", "error", err)
	}
	logger.Info("Ingestion finished",
		"run", summary.RunID,
		"processed", summary.Processed,
		"companies", len(summary.Persisted),
		"faults", len(summary.Faults))
	for _, f := range summary.Faults {
		logger.Warn("Skipped file", "filename", f.Filename, "reason", f.Reason)
	}

	if !opts.Profiles {
		return
	}

	aiService := ai.NewOpenAIService(logger, envs.CompletionsAPIKey, envs.CompletionsAPIURL)
	synthesizer, err := profiler.NewSynthesizer(logger, aiService, envs.CompletionsModel, emails, profiles, envs.HomeDomains)
	if err != nil {
		logger.Fatal("Unable to create synthesizer", "error", err)
	}
	report, err := synthesizer.RefreshAll(ctx)
	if err != nil {
		logger.Fatal("Profile refresh failed", "error", err)
	}
	logger.Info("Profiles refreshed",
		"synthesized", len(report.Synthesized),
		"fallbacks", len(report.Fallbacks))
	for _, key := range report.Fallbacks {
		logger.Warn("Stored raw model output", "key", key)
	}
}
