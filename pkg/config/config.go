package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type Config struct {
	CompletionsAPIURL string
	CompletionsAPIKey string
	CompletionsModel  string
	HTTPPort          string
	DataPath          string
	EmlPath           string
	EmailJSONPath     string
	ProfileJSONPath   string
	DBPath            string
	HomeDomains       []string
	ReplyMarker       string
}

func getEnv(key, defaultValue string, printEnv bool) string {
	logger := log.Default()
	value := os.Getenv(key)
	if printEnv {
		logger.Info("Env", "key", key, "value", value)
	}
	if value == "" {
		return defaultValue
	}
	return value
}

func LoadConfig(printEnv bool) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{
		CompletionsAPIURL: getEnv("COMPLETIONS_API_URL", "https://api.openai.com/v1", printEnv),
		CompletionsAPIKey: getEnv("COMPLETIONS_API_KEY", "", printEnv),
		CompletionsModel:  getEnv("COMPLETIONS_MODEL", "gpt-4.1-mini", printEnv),
		HTTPPort:          getEnv("HTTP_PORT", "44777", printEnv),
		DataPath:          getEnv("DATA_PATH", "./data", printEnv),
		ReplyMarker:       getEnv("REPLY_MARKER", "-----Ursprüngliche Nachricht-----", printEnv),
	}

	conf.EmlPath = getEnv("EML_PATH", filepath.Join(conf.DataPath, "emails", "eml"), printEnv)
	conf.EmailJSONPath = getEnv("EMAIL_JSON_PATH", filepath.Join(conf.DataPath, "emails", "json"), printEnv)
	conf.ProfileJSONPath = getEnv("PROFILE_JSON_PATH", filepath.Join(conf.DataPath, "profiles", "json"), printEnv)
	conf.DBPath = getEnv("DB_PATH", filepath.Join(conf.DataPath, "sqlite", "store.db"), printEnv)

	for _, d := range strings.Split(getEnv("HOME_DOMAINS", "innovatek-solutions.de", printEnv), ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			conf.HomeDomains = append(conf.HomeDomains, d)
		}
	}

	return conf, nil
}
