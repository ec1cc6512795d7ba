package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Workers  WorkersConfig  `yaml:"workers"`
	Import   ImportConfig   `yaml:"import"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	// Driver is one of mysql, postgres, sqlite.
	Driver             string        `yaml:"driver"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	Charset            string        `yaml:"charset"`
	ParseTime          bool          `yaml:"parse_time"`
	Loc                string        `yaml:"loc"`
	SSLMode            string        `yaml:"ssl_mode"`
	Path               string        `yaml:"path"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
	// Procedures stands in for stored procedures on stores without them
	// (sqlite): procedure name -> SQL script.
	Procedures map[string]string `yaml:"procedures"`
}

type RedisConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size"`
	ImportQueue string `yaml:"import_queue"`
	DLQSuffix   string `yaml:"dlq_suffix"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type WorkersConfig struct {
	Ingestion IngestionWorkerConfig `yaml:"ingestion"`
	Export    ExportWorkerConfig    `yaml:"export"`
}

type IngestionWorkerConfig struct {
	Count int `yaml:"count"`
}

type ExportWorkerConfig struct {
	// RunAt is the local wall-clock time of the daily export, "15:04".
	RunAt      string `yaml:"run_at"`
	RunOnStart bool   `yaml:"run_on_start"`
	DataType   string `yaml:"data_type"`
	Market     string `yaml:"market"`
	// Lookback selects how far back calculated results are exported.
	Lookback time.Duration `yaml:"lookback"`
}

type ImportConfig struct {
	MappingPath       string `yaml:"mapping_path"`
	TablePrefix       string `yaml:"table_prefix"`
	DailyTable        string `yaml:"daily_table"`
	CleanupProcedure  string `yaml:"cleanup_procedure"`
	PostLoadProcedure string `yaml:"post_load_procedure"`
}

type ExportConfig struct {
	TempDir     string `yaml:"temp_dir"`
	MarketQuery string `yaml:"market_query"`
	ResultQuery string `yaml:"result_query"`
	Upload      bool   `yaml:"upload"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the settings used for keys missing from the file.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "dosage-management", Env: "development"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  64 << 20,
		},
		Database: DatabaseConfig{Driver: "mysql", Charset: "utf8mb4", ParseTime: true, Loc: "Local"},
		Redis:    RedisConfig{ImportQueue: "dosage:imports", DLQSuffix: ":dlq", PoolSize: 10},
		Workers: WorkersConfig{
			Ingestion: IngestionWorkerConfig{Count: 1},
			Export:    ExportWorkerConfig{RunAt: "23:30", DataType: "MTH", Market: "all", Lookback: 24 * time.Hour},
		},
		Import: ImportConfig{
			MappingPath:       "ExcelColumnMapping.json",
			TablePrefix:       "BIZ_",
			DailyTable:        "DailyDosage",
			CleanupProcedure:  "usp_cleanBizTable",
			PostLoadProcedure: "usp_initBizData",
		},
		Export: ExportConfig{
			TempDir:     "temp_excel",
			MarketQuery: "SELECT DISTINCT Market1Name FROM MarketSettings",
			ResultQuery: "SELECT * FROM DosageResult WHERE Market = ? AND DataType = ? AND CalculatedFrom >= ?",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DOSAGE_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DOSAGE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("DOSAGE_S3_ACCESS_KEY"); v != "" {
		c.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("DOSAGE_S3_SECRET_KEY"); v != "" {
		c.Storage.S3.SecretKey = v
	}
	if v := os.Getenv("DOSAGE_MAPPING_PATH"); v != "" {
		c.Import.MappingPath = v
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Import.DailyTable == "" {
		return fmt.Errorf("import.daily_table must be set")
	}
	if _, err := time.Parse("15:04", c.Workers.Export.RunAt); err != nil {
		return fmt.Errorf("invalid workers.export.run_at: %w", err)
	}
	return nil
}

// DatabaseDSN renders the connection string of the configured driver.
func (c *Config) DatabaseDSN() string {
	d := c.Database
	switch d.Driver {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
			Path:   d.Name,
		}
		if d.SSLMode != "" {
			u.RawQuery = "sslmode=" + d.SSLMode
		}
		return u.String()
	case "sqlite":
		return d.Path
	default:
		// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s&multiStatements=true",
			d.User, d.Password, d.Host, d.Port, d.Name, d.Charset, d.ParseTime, url.QueryEscape(d.Loc))
	}
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
