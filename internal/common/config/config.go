// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Store    StoreConfig             `mapstructure:"store"`
	Kafka    KafkaConfig             `mapstructure:"kafka"`
	Push     PushConfig              `mapstructure:"push"`
	Email    EmailConfig             `mapstructure:"email"`
	Dispatch DispatchConfig          `mapstructure:"dispatch"`
	Sources  SourcesConfig           `mapstructure:"sources"`
	Journal  JournalConfig           `mapstructure:"journal"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	HTTP     HTTPConfig              `mapstructure:"http"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	DisplayName string `mapstructure:"display_name"` // used in user-facing copy
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type MongoConfig struct {
	URI             string `mapstructure:"uri"`
	Database        string `mapstructure:"database"`
	ConnectTimeout  int    `mapstructure:"connect_timeout"` // milliseconds
	MaxPoolSize     uint64 `mapstructure:"max_pool_size"`
	MinPoolSize     uint64 `mapstructure:"min_pool_size"`
	RetryAttempts   int    `mapstructure:"retry_attempts"`
	RetryInterval   int    `mapstructure:"retry_interval"` // milliseconds
	MaxConnIdleTime int    `mapstructure:"max_conn_idle_time"`
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
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig selects where user, job and listing documents live.
type StoreConfig struct {
	Driver             string `mapstructure:"driver"` // "mongo" or "postgres"
	UsersCollection    string `mapstructure:"users_collection"`
	JobsCollection     string `mapstructure:"jobs_collection"`
	ListingsCollection string `mapstructure:"listings_collection"`
	PreferencesField   string `mapstructure:"preferences_field"`
	EndpointsField     string `mapstructure:"endpoints_field"`
	PostgresUsersTable string `mapstructure:"postgres_users_table"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// PushConfig configures the SNS-backed push gateway.
type PushConfig struct {
	Region         string `mapstructure:"region"`
	TopicARNPrefix string `mapstructure:"topic_arn_prefix"` // e.g. arn:aws:sns:us-east-1:123456789012:
	TopicPrefix    string `mapstructure:"topic_prefix"`     // prepended to logical topic names
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	Android        struct {
		Priority  string `mapstructure:"priority"`
		ChannelID string `mapstructure:"channel_id"`
		Sound     string `mapstructure:"sound"`
	} `mapstructure:"android"`
	APNS struct {
		Sound string `mapstructure:"sound"`
		Badge int    `mapstructure:"badge"`
	} `mapstructure:"apns"`
}

type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	FromEmail string `mapstructure:"from_email"`
}

type DispatchConfig struct {
	Timeout      int  `mapstructure:"timeout"` // milliseconds, per invocation
	DedupEnabled bool `mapstructure:"dedup_enabled"`
	DedupTTL     int  `mapstructure:"dedup_ttl"` // seconds
}

// SourcesConfig toggles the change-event sources started by `serve`.
type SourcesConfig struct {
	ChangeStream struct {
		Enabled       bool   `mapstructure:"enabled"`
		CheckpointKey string `mapstructure:"checkpoint_key"`
	} `mapstructure:"change_stream"`
	Zeebe struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"zeebe"`
	Kafka struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"kafka"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// WorkerConfig holds the core settings applicable to every Zeebe worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}
