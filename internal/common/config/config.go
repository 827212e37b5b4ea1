package config

import "fmt"

// Config is the root configuration of the assistant and its workers.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Auth         AuthConfig              `mapstructure:"auth"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	APIs         APIsConfig              `mapstructure:"apis"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Assistant    AssistantConfig         `mapstructure:"assistant"`
	Registry     RegistryConfig          `mapstructure:"registry"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HealthPort  int    `mapstructure:"health_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	Insecure       bool   `mapstructure:"insecure"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	DocumentTable  string `mapstructure:"document_table"`
}

// GetDSN returns the lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	URL           string   `mapstructure:"url"`
	ProviderIndex string   `mapstructure:"provider_index"`
}

// GetURL returns URL, or the first address when URL is unset.
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// WorkerConfig holds the settings shared by every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// AuthConfig configures the Keycloak realm whose tokens identify the caller.
type AuthConfig struct {
	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// ProviderAPIConfig holds the endpoint settings of one completion backend.
type ProviderAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type APIsConfig struct {
	GenAI          ProviderAPIConfig `mapstructure:"genai"`
	OpenAI         ProviderAPIConfig `mapstructure:"openai"`
	Anthropic      ProviderAPIConfig `mapstructure:"anthropic"`
	Gemini         ProviderAPIConfig `mapstructure:"gemini"`
	KnowledgeGraph ProviderAPIConfig `mapstructure:"knowledge_graph"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AssistantConfig tunes the conversational pipeline.
type AssistantConfig struct {
	Provider           string  `mapstructure:"provider"`
	DampeningFactor    float64 `mapstructure:"dampening_factor"`
	DampeningFloor     float64 `mapstructure:"dampening_floor"`
	RepeatWindowMS     int     `mapstructure:"repeat_window_ms"`
	MinConfidence      float64 `mapstructure:"min_confidence"`
	RecentWindow       int     `mapstructure:"recent_window"`
	AllowDemoIdentity  bool    `mapstructure:"allow_demo_identity"`
	DemoFamilyID       string  `mapstructure:"demo_family_id"`
	DemoUserID         string  `mapstructure:"demo_user_id"`
	CompletionTimeout  int     `mapstructure:"completion_timeout_ms"`
	StoreTimeout       int     `mapstructure:"store_timeout_ms"`
	KnowledgeTimeout   int     `mapstructure:"knowledge_timeout_ms"`
	LearningTimeout    int     `mapstructure:"learning_timeout_ms"`
	KnowledgeCacheTTLS int     `mapstructure:"knowledge_cache_ttl_s"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
