package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/samber/lo"

	"github.com/innovatek/mailprofile/pkg/ai"
	"github.com/innovatek/mailprofile/pkg/chat"
	"github.com/innovatek/mailprofile/pkg/config"
	"github.com/innovatek/mailprofile/pkg/db"
	"github.com/innovatek/mailprofile/pkg/emailstore"
	"github.com/innovatek/mailprofile/pkg/ingest"
	"github.com/innovatek/mailprofile/pkg/mailparse"
	"github.com/innovatek/mailprofile/pkg/matching"
	"github.com/innovatek/mailprofile/pkg/profiler"
	"github.com/innovatek/mailprofile/pkg/profilestore"
)

type server struct {
	logger       *log.Logger
	envs         *config.Config
	pipeline     *ingest.Pipeline
	emails       *emailstore.Store
	emailCache   *emailstore.Cache
	profiles     *profilestore.Store
	profileCache *profilestore.Cache
	synthesizer  *profiler.Synthesizer
	chat         *chat.Service
	history      *db.Store
}

func main() {
	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Level:           log.DebugLevel,
		TimeFormat:      time.Kitchen,
	})

	envs, _ := config.LoadConfig(true)
	logger.Info("Using data path", "path", envs.DataPath)

	if err := os.MkdirAll(envs.EmlPath, 0o755); err != nil {
		panic(errors.Wrap(err, "Unable to create eml folder"))
	}

	history, err := db.NewStore(envs.DBPath)
	if err != nil {
		logger.Error("Unable to create or initialize database", "error", err)
		panic(errors.Wrap(err, "Unable to create or initialize database"))
	}
	defer func() {
		if err := history.Close(); err != nil {
			logger.Error("Error closing store", "error", err)
		}
	}()

	emails, err := emailstore.NewStore(logger, envs.EmailJSONPath)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create email store"))
	}
	profiles, err := profilestore.NewStore(logger, envs.ProfileJSONPath)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create profile store"))
	}

	decoder, err := mailparse.NewDecoder(logger, envs.ReplyMarker)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create decoder"))
	}
	pipeline, err := ingest.NewPipeline(logger, decoder, emails, history, envs.HomeDomains)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create pipeline"))
	}

	aiService := ai.NewOpenAIService(logger, envs.CompletionsAPIKey, envs.CompletionsAPIURL)
	synthesizer, err := profiler.NewSynthesizer(logger, aiService, envs.CompletionsModel, emails, profiles, envs.HomeDomains)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create synthesizer"))
	}

	profileCache := profilestore.NewCache(profiles)
	chatService, err := chat.NewService(logger, aiService, envs.CompletionsModel, profileCache)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create chat service"))
	}

	srv := &server{
		logger:       logger,
		envs:         envs,
		pipeline:     pipeline,
		emails:       emails,
		emailCache:   emailstore.NewCache(emails),
		profiles:     profiles,
		profileCache: profileCache,
		synthesizer:  synthesizer,
		chat:         chatService,
		history:      history,
	}

	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	router.Route("/api", func(r chi.Router) {
		r.Post("/emails", srv.uploadEmails)
		r.Delete("/emails", srv.deleteEmails)
		r.Post("/ingest", srv.runIngest)
		r.Get("/profiles", srv.listProfiles)
		r.Post("/profiles/refresh", srv.refreshProfiles)
		r.Get("/companies/{name}/emails", srv.companyEmails)
		r.Post("/chat", srv.chatHandler)
		r.Get("/runs", srv.listRuns)
	})

	httpServer := &http.Server{
		Addr:    ":" + envs.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening", "port", envs.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// uploadEmails stores uploaded .eml files and reprocesses the folder, the
// upload-then-ingest flow of the demonstrator.
func (s *server) uploadEmails(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	saved := 0
	for _, fh := range r.MultipartForm.File["files"] {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".eml") {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		name := filepath.Base(fh.Filename)
		if err := os.WriteFile(filepath.Join(s.envs.EmlPath, name), data, 0o644); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		saved++
	}

	summary, err := s.pipeline.Run(r.Context(), s.envs.EmlPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.emailCache.Invalidate()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"saved":     saved,
		"persisted": summary.Persisted,
		"faults":    summary.Faults,
	})
}

// deleteEmails removes every raw .eml file and the derived documents, then
// rebuilds from the now-empty folder.
func (s *server) deleteEmails(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.envs.EmlPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".eml") {
			continue
		}
		if err := os.Remove(filepath.Join(s.envs.EmlPath, e.Name())); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		removed++
	}
	if err := s.emails.DeleteAll(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := s.pipeline.Run(r.Context(), s.envs.EmlPath); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.emailCache.Invalidate()

	s.writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *server) runIngest(w http.ResponseWriter, r *http.Request) {
	summary, err := s.pipeline.Run(r.Context(), s.envs.EmlPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.emailCache.Invalidate()
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *server) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, _, err := s.profileCache.All()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profiles)
}

func (s *server) refreshProfiles(w http.ResponseWriter, r *http.Request) {
	report, err := s.synthesizer.RefreshAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.profileCache.Invalidate()
	s.writeJSON(w, http.StatusOK, report)
}

// companyEmails resolves a profile's company name against the persisted
// email-store keys and returns that company's history, served from the
// read-through cache. A resolution miss is a valid empty result, not an
// error.
func (s *server) companyEmails(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	histories, _, err := s.emailCache.All()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	key, ok := matching.Resolve(name, lo.Keys(histories))
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"key": nil, "emails": []emailstore.Email{}})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"key": key, "emails": histories[key]})
}

func (s *server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	answer, err := s.chat.Answer(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.history.GetRuns(r.Context(), 20)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}
