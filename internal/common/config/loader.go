// internal/common/config/loader.go
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

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Load reads configs/config.yaml, merges configs/config.{APP_ENVIRONMENT}.yaml
// and applies environment overrides.
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

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
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
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
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

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Mongo.URI == "" {
		if val := os.Getenv("MONGO_URI"); val != "" {
			cfg.Database.Mongo.URI = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Push.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Push.Region = val
		}
	}
	if cfg.Email.Region == "" {
		cfg.Email.Region = cfg.Push.Region
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notification-workers"
	}
	if cfg.App.DisplayName == "" {
		cfg.App.DisplayName = "FillExchange"
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

	if cfg.Database.Mongo.ConnectTimeout == 0 {
		cfg.Database.Mongo.ConnectTimeout = 10000
	}
	if cfg.Database.Mongo.MaxPoolSize == 0 {
		cfg.Database.Mongo.MaxPoolSize = 50
	}
	if cfg.Database.Mongo.RetryAttempts == 0 {
		cfg.Database.Mongo.RetryAttempts = 5
	}
	if cfg.Database.Mongo.RetryInterval == 0 {
		cfg.Database.Mongo.RetryInterval = 2000
	}
	if cfg.Database.Mongo.MaxConnIdleTime == 0 {
		cfg.Database.Mongo.MaxConnIdleTime = 300000
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

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMongo
	}
	if cfg.Store.UsersCollection == "" {
		cfg.Store.UsersCollection = "users"
	}
	if cfg.Store.JobsCollection == "" {
		cfg.Store.JobsCollection = "jobs"
	}
	if cfg.Store.ListingsCollection == "" {
		cfg.Store.ListingsCollection = "listings"
	}
	if cfg.Store.PreferencesField == "" {
		cfg.Store.PreferencesField = "notificationPreferences"
	}
	if cfg.Store.EndpointsField == "" {
		cfg.Store.EndpointsField = "deliveryEndpoints"
	}
	if cfg.Store.PostgresUsersTable == "" {
		cfg.Store.PostgresUsersTable = "users"
	}

	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "notification-dispatcher"
	}

	if cfg.Push.MaxConcurrency == 0 {
		cfg.Push.MaxConcurrency = 10
	}
	if cfg.Push.Android.Priority == "" {
		cfg.Push.Android.Priority = "high"
	}
	if cfg.Push.Android.ChannelID == "" {
		cfg.Push.Android.ChannelID = "fill_exchange_default"
	}
	if cfg.Push.Android.Sound == "" {
		cfg.Push.Android.Sound = "default"
	}
	if cfg.Push.APNS.Sound == "" {
		cfg.Push.APNS.Sound = "default"
	}
	if cfg.Push.APNS.Badge == 0 {
		cfg.Push.APNS.Badge = 1
	}

	if cfg.Dispatch.Timeout == 0 {
		cfg.Dispatch.Timeout = 60000
	}
	if cfg.Dispatch.DedupTTL == 0 {
		cfg.Dispatch.DedupTTL = 86400
	}

	if cfg.Sources.ChangeStream.CheckpointKey == "" {
		cfg.Sources.ChangeStream.CheckpointKey = "notify:changestream:resume"
	}

	if cfg.Journal.Index == "" {
		cfg.Journal.Index = "notification-deliveries"
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

	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}

	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = 30000
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Workers[key] = w
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Store.Driver {
	case DriverMongo:
		if cfg.Database.Mongo.URI == "" {
			return fmt.Errorf("database.mongo.uri is required")
		}
		if cfg.Database.Mongo.Database == "" {
			return fmt.Errorf("database.mongo.database is required")
		}
	case DriverPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverMongo, DriverPostgres, cfg.Store.Driver)
	}

	if cfg.Push.Region == "" {
		return fmt.Errorf("push.region is required")
	}
	if cfg.Push.TopicARNPrefix == "" {
		return fmt.Errorf("push.topic_arn_prefix is required")
	}

	if cfg.Email.Enabled && cfg.Email.FromEmail == "" {
		return fmt.Errorf("email.from_email is required when email is enabled")
	}

	if cfg.Sources.ChangeStream.Enabled && cfg.Store.Driver != DriverMongo {
		return fmt.Errorf("sources.change_stream requires store.driver %q", DriverMongo)
	}
	if cfg.Sources.Zeebe.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Sources.Kafka.Enabled && (len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required")
	}

	needsRedis := cfg.Dispatch.DedupEnabled || cfg.Sources.ChangeStream.Enabled
	if needsRedis && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Journal.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when journal is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, exists := cfg.Workers[workerName]; exists {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}
