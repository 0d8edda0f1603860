package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.storepulse/storepulse.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version     int               `yaml:"version"`
	Data        DataConfig        `yaml:"data"`
	Ingestion   IngestionConfig   `yaml:"ingestion,omitempty"`
	Cleaning    CleaningConfig    `yaml:"cleaning,omitempty"`
	SCD         SCDConfig         `yaml:"scd,omitempty"`
	Aggregation AggregationConfig `yaml:"aggregation,omitempty"`
	Export      ExportConfig      `yaml:"export,omitempty"`
	Publish     PublishConfig     `yaml:"publish,omitempty"`
	Metrics     MetricsConfig     `yaml:"metrics,omitempty"`
	Lock        LockConfig        `yaml:"lock,omitempty"`
	Logging     LogConfig         `yaml:"logging,omitempty"`
}

// DataConfig locates the flat-file tables.
type DataConfig struct {
	Directory string            `yaml:"directory"`
	Tables    map[string]string `yaml:"tables,omitempty"` // logical name -> file name override
}

// Path returns the file path of a logical table.
func (d DataConfig) Path(name string) string {
	file := name + ".csv"
	if override, ok := d.Tables[name]; ok && override != "" {
		file = override
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(ExpandHome(d.Directory), file)
}

// IngestionConfig controls retries on transient read failures.
type IngestionConfig struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty"` // default 3
	Backoff     time.Duration `yaml:"backoff,omitempty"`      // default 2s
}

// CleaningConfig controls the transaction and inventory contracts.
type CleaningConfig struct {
	DedupKey           []string `yaml:"dedup_key,omitempty"`         // default [transaction_id]
	StoreKeyAliases    []string `yaml:"store_key_aliases,omitempty"` // default store_id, warehouse_id, id
	PlaceholderStoreID string   `yaml:"placeholder_store_id,omitempty"`
}

// SCDConfig describes the customer dimension history.
type SCDConfig struct {
	KeyColumn         string   `yaml:"key_column,omitempty"`
	TrackedAttributes []string `yaml:"tracked_attributes,omitempty"`
	EffectiveColumn   string   `yaml:"effective_column,omitempty"`
}

// AggregationConfig tunes the KPI computations.
type AggregationConfig struct {
	CriticalStockThreshold int `yaml:"critical_stock_threshold,omitempty"` // default 20
	Workers                int `yaml:"workers,omitempty"`                  // default 4
	MaxBasketSize          int `yaml:"max_basket_size,omitempty"`          // 0 = unlimited
}

// ExportConfig controls the partitioned Parquet export.
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Directory string `yaml:"directory,omitempty"` // default <data>/gold_parquet
	S3Bucket  string `yaml:"s3_bucket,omitempty"`
	S3Prefix  string `yaml:"s3_prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Profile   string `yaml:"profile,omitempty"`
}

// PublishConfig lists external sinks for engine-owned tables.
type PublishConfig struct {
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
	MongoDB  MongoConfig    `yaml:"mongodb,omitempty"`
}

// PostgresConfig defines the PostgreSQL reporting sink.
type PostgresConfig struct {
	DSN    string `yaml:"dsn,omitempty"`
	Schema string `yaml:"schema,omitempty"` // default public
}

// MongoConfig defines the MongoDB reporting sink.
type MongoConfig struct {
	ConnectionString string `yaml:"connection_string,omitempty"`
	Database         string `yaml:"database,omitempty"`
}

// MetricsConfig defines where run metrics are written.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// LockConfig defines the run lock location.
type LockConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Format    string `yaml:"format,omitempty"`    // text or json
	Directory string `yaml:"directory,omitempty"` // default ~/.storepulse/logs/
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file from the given path. When path is
// empty and the default file does not exist, the defaults are returned.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	var problems []string
	if c.Ingestion.MaxAttempts < 1 {
		problems = append(problems, "ingestion.max_attempts must be at least 1")
	}
	if c.Ingestion.Backoff < 0 {
		problems = append(problems, "ingestion.backoff must not be negative")
	}
	if c.Aggregation.Workers < 1 {
		problems = append(problems, "aggregation.workers must be at least 1")
	}
	if c.Aggregation.MaxBasketSize < 0 {
		problems = append(problems, "aggregation.max_basket_size must not be negative")
	}
	if len(c.SCD.TrackedAttributes) == 0 {
		problems = append(problems, "scd.tracked_attributes must not be empty")
	}
	if c.Publish.MongoDB.ConnectionString != "" && c.Publish.MongoDB.Database == "" {
		problems = append(problems, "publish.mongodb.database is required with a connection string")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Data.Directory == "" {
		c.Data.Directory = "data"
	}
	if c.Ingestion.MaxAttempts == 0 {
		c.Ingestion.MaxAttempts = 3
	}
	if c.Ingestion.Backoff == 0 {
		c.Ingestion.Backoff = 2 * time.Second
	}
	if len(c.Cleaning.DedupKey) == 0 {
		c.Cleaning.DedupKey = []string{"transaction_id"}
	}
	if len(c.Cleaning.StoreKeyAliases) == 0 {
		c.Cleaning.StoreKeyAliases = []string{"store_id", "warehouse_id", "id"}
	}
	if c.Cleaning.PlaceholderStoreID == "" {
		c.Cleaning.PlaceholderStoreID = "WH-001"
	}
	if c.SCD.KeyColumn == "" {
		c.SCD.KeyColumn = "customer_id"
	}
	if len(c.SCD.TrackedAttributes) == 0 {
		c.SCD.TrackedAttributes = []string{"city", "phone"}
	}
	if c.SCD.EffectiveColumn == "" {
		c.SCD.EffectiveColumn = "updated_at"
	}
	if c.Aggregation.CriticalStockThreshold == 0 {
		c.Aggregation.CriticalStockThreshold = 20
	}
	if c.Aggregation.Workers == 0 {
		c.Aggregation.Workers = 4
	}
	if c.Export.Directory == "" {
		c.Export.Directory = filepath.Join(c.Data.Directory, "gold_parquet")
	}
	if c.Publish.Postgres.Schema == "" {
		c.Publish.Postgres.Schema = "public"
	}
	if c.Lock.Path == "" {
		c.Lock.Path = "~/.storepulse/storepulse.lock"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.storepulse/logs/")
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
