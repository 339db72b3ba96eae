package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/medverus-cli/internal/adapters/api"
	chainstore "github.com/bnema/medverus-cli/internal/adapters/credstore/chain"
	filestore "github.com/bnema/medverus-cli/internal/adapters/credstore/file"
	"github.com/bnema/medverus-cli/internal/adapters/history/gormstore"
	"github.com/bnema/medverus-cli/internal/application"
	"github.com/bnema/medverus-cli/internal/compliance"
	"github.com/bnema/medverus-cli/internal/ports"
)

const (
	configDirName    = ".medverus"
	configName       = "config"
	configType       = "toml"
	credentialsFile  = "credentials.toml"
	legacyConfigDir  = ".config/medverus"
	historyFile      = "history.db"
	clientIdentity   = "medverus-cli/1.0 (terminal)"
	loginFlowTimeout = 5 * time.Minute
)

type app struct {
	credentials *application.CredentialService
	queries     *application.QueryService
	store       ports.CredentialStore
	sessions    ports.SessionRepository
	apiClient   api.Client
	browser     browserLoginConfig
	now         func() time.Time
}

type browserLoginConfig struct {
	Issuer     string
	ClientID   string
	ListenAddr string
	Timeout    time.Duration
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	configDir := filepath.Join(homeDir, configDirName)

	cfg := viper.New()
	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(configDir)
	cfg.SetDefault("api.base_url", envOrDefault("MQ_API_BASE_URL", "https://api.medverus.com"))
	cfg.SetDefault("credentials.path", filepath.Join(configDir, credentialsFile))
	cfg.SetDefault("history.path", filepath.Join(configDir, historyFile))
	cfg.SetDefault("history.capacity", gormstore.DefaultCapacity)

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	// The legacy location is a read fallback for records written before the
	// config dir moved under the home directory.
	store, err := chainstore.NewStore(
		filestore.NewStore(cfg.GetString("credentials.path")),
		filestore.NewStore(filepath.Join(homeDir, legacyConfigDir, credentialsFile)),
	)
	if err != nil {
		return nil, fmt.Errorf("wire credential store chain: %w", err)
	}

	db, err := gormstore.Open(cfg.GetString("history.path"))
	if err != nil {
		return nil, fmt.Errorf("wire session history: %w", err)
	}
	sessions := gormstore.NewStore(db, cfg.GetInt("history.capacity"))

	apiClient := api.Client{
		API:        api.DefaultAPI(cfg.GetString("api.base_url")),
		ClientID:   envOrDefault("MQ_AUTH_CLIENT_ID", "mq-terminal"),
		HTTPClient: http.DefaultClient,
		UserAgent:  clientIdentity,
	}

	credentials := application.NewCredentialService(store, apiClient, ports.SystemClock{})
	gate := compliance.NewGate(loadPolicy(cfg))
	queries := application.NewQueryService(gate, credentials, apiClient, sessions, ports.SystemClock{})

	return &app{
		credentials: credentials,
		queries:     queries,
		store:       store,
		sessions:    sessions,
		apiClient:   apiClient,
		browser: browserLoginConfig{
			Issuer:     envOrDefault("MQ_AUTH_ISSUER", "https://auth.medverus.com"),
			ClientID:   envOrDefault("MQ_AUTH_CLIENT_ID", "mq-terminal"),
			ListenAddr: envOrDefault("MQ_AUTH_LISTEN", "127.0.0.1:1456"),
			Timeout:    loginFlowTimeout,
		},
		now: time.Now,
	}, nil
}

// loadPolicy starts from the built-in policy and applies any list
// overrides from the config file.
func loadPolicy(cfg *viper.Viper) compliance.Policy {
	policy := compliance.DefaultPolicy()
	if regions := cfg.GetStringSlice("compliance.restricted_regions"); len(regions) > 0 {
		policy.RestrictedRegions = regions
	}
	if endpoints := cfg.GetStringSlice("compliance.sensitive_endpoints"); len(endpoints) > 0 {
		policy.SensitiveEndpoints = endpoints
	}
	if keywords := cfg.GetStringSlice("compliance.medical_keywords"); len(keywords) > 0 {
		policy.MedicalKeywords = keywords
	}
	if threshold := cfg.GetInt("compliance.bulk_access_threshold"); threshold > 0 {
		policy.BulkAccessThreshold = threshold
	}
	return policy
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
