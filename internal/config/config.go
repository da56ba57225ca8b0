package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI AIConfig `yaml:"ai"`

	Auth struct {
		// APIKeys maps tenant → key. Empty disables authentication.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	Sentry struct {
		DSN         string `yaml:"dsn"`
		Environment string `yaml:"environment"`
	} `yaml:"sentry"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json
	} `yaml:"log"`
}

// AIConfig selects the model provider. The API key itself is never stored here; it is read
// from the environment variables in APIKeyEnv on every request.
type AIConfig struct {
	Provider              string   `yaml:"provider"` // gemini | openai
	Model                 string   `yaml:"model"`
	BaseURL               string   `yaml:"baseURL"`
	ThinkingBudget        int32    `yaml:"thinkingBudget"`
	APIKeyEnv             []string `yaml:"apiKeyEnv"`
	SystemInstructionFile string   `yaml:"systemInstructionFile"`
	ResponseSchemaFile    string   `yaml:"responseSchemaFile"`
}

// Load reads config.yaml after loading a .env file if one exists. ${VAR} references in the
// file are expanded from the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// expandEnv replaces ${NAME} references only; any other $ is kept as written.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.Model == "" && c.AI.Provider == "gemini" {
		c.AI.Model = "gemini-2.5-pro"
	}
	if c.AI.ThinkingBudget == 0 {
		c.AI.ThinkingBudget = 32768
	}
	if len(c.AI.APIKeyEnv) == 0 {
		c.AI.APIKeyEnv = []string{"GEMINI_API_KEY", "API_KEY"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	var errs []error

	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be mysql or postgres (got: %s)", c.Database.Driver))
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("database.host and database.name are required"))
	}

	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("ai.provider must be gemini or openai (got: %s)", c.AI.Provider))
	}
	if c.AI.BaseURL != "" {
		if u, err := url.Parse(c.AI.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("ai.baseURL is not an absolute URL: %q", c.AI.BaseURL))
		}
	}

	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required when minio is enabled"))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json (got: %s)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}
	return nil
}

// MySQLDSN builds the go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// EnvCredential reads the first non-empty environment variable from Names.
// It is evaluated on every call so a redeployed key takes effect without a restart.
type EnvCredential struct {
	Names []string
}

func (e EnvCredential) APIKey() string {
	for _, name := range e.Names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
