package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var supportedProviders = map[string]bool{
	"genai":     true,
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return build(v)
}

// LoadFromFile loads configuration from a single file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills secrets that are commonly supplied only through
// the environment.
func overrideEmptyConfig(cfg *Config) {
	setFromEnv(&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY")
	setFromEnv(&cfg.APIs.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&cfg.APIs.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setFromEnv(&cfg.APIs.Gemini.APIKey, "GEMINI_API_KEY")
	setFromEnv(&cfg.APIs.KnowledgeGraph.APIKey, "KNOWLEDGE_GRAPH_API_KEY")
	setFromEnv(&cfg.Auth.Keycloak.ClientSecret, "KEYCLOAK_CLIENT_SECRET")
	setFromEnv(&cfg.Database.Postgres.User, "DB_USER")
	setFromEnv(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setFromEnv(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setFromEnv(dst *string, name string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.HealthPort == 0 {
		cfg.App.HealthPort = 8080
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.DocumentTable == "" {
		cfg.Database.Postgres.DocumentTable = "family_documents"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.ProviderIndex == "" {
		cfg.Database.Elasticsearch.ProviderIndex = "family-providers"
	}
	if cfg.Database.Redis.KeyPrefix == "" {
		cfg.Database.Redis.KeyPrefix = "assistant"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	for _, api := range []*ProviderAPIConfig{&cfg.APIs.GenAI, &cfg.APIs.OpenAI, &cfg.APIs.Anthropic, &cfg.APIs.Gemini} {
		if api.Timeout == 0 {
			api.Timeout = 60000
		}
	}
	if cfg.APIs.KnowledgeGraph.Timeout == 0 {
		cfg.APIs.KnowledgeGraph.Timeout = 5000
	}

	a := &cfg.Assistant
	if a.Provider == "" {
		a.Provider = "genai"
	}
	if a.DampeningFactor == 0 {
		a.DampeningFactor = 0.8
	}
	if a.DampeningFloor == 0 {
		a.DampeningFloor = 0.4
	}
	if a.RepeatWindowMS == 0 {
		a.RepeatWindowMS = 120000
	}
	if a.MinConfidence == 0 {
		a.MinConfidence = 0.5
	}
	if a.RecentWindow == 0 {
		a.RecentWindow = 10
	}
	if a.CompletionTimeout == 0 {
		a.CompletionTimeout = 30000
	}
	if a.StoreTimeout == 0 {
		a.StoreTimeout = 5000
	}
	if a.KnowledgeTimeout == 0 {
		a.KnowledgeTimeout = 5000
	}
	if a.LearningTimeout == 0 {
		a.LearningTimeout = 2000
	}
	if a.KnowledgeCacheTTLS == 0 {
		a.KnowledgeCacheTTLS = 300
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	a := cfg.Assistant
	if !supportedProviders[a.Provider] {
		return fmt.Errorf("assistant.provider %q is not supported", a.Provider)
	}
	if a.DampeningFactor <= 0 || a.DampeningFactor > 1 {
		return fmt.Errorf("assistant.dampening_factor must be in (0,1], got %v", a.DampeningFactor)
	}
	if a.DampeningFloor < 0 || a.DampeningFloor > 1 {
		return fmt.Errorf("assistant.dampening_floor must be in [0,1], got %v", a.DampeningFloor)
	}
	if a.AllowDemoIdentity && (a.DemoFamilyID == "" || a.DemoUserID == "") {
		return fmt.Errorf("assistant.demo_family_id and demo_user_id are required when allow_demo_identity is set")
	}
	return nil
}

// GetDuration converts configured milliseconds to a time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the worker's configuration or the defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, ok := cfg.Workers[workerName]; ok {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled reports whether workerName is enabled. Unlisted workers are.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, ok := cfg.Workers[workerName]; ok {
		return worker.Enabled
	}
	return true
}
