package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnvVar optional path to a YAML config file
	ConfigPathEnvVar = "AUTHGATE_CONFIG"
	// AddressEnvVar overrides server.address
	AddressEnvVar = "AUTHGATE_ADDR"
	// DatabaseDSNEnvVar overrides database.dsn
	DatabaseDSNEnvVar = "AUTHGATE_DB_DSN"
)

// Config is the root configuration. The signing secret is not part of it,
// see LoadSecret.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Routes   RoutesConfig   `yaml:"routes"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Address   string `yaml:"address"`
	PublicDir string `yaml:"public_dir"`
}

type AuthConfig struct {
	CookieName      string `yaml:"cookie_name"`
	CookieSecure    bool   `yaml:"cookie_secure"`
	LoginPath       string `yaml:"login_path"`
	SuccessRedirect string `yaml:"success_redirect"`
	FailureRedirect string `yaml:"failure_redirect"`
	LogoutRedirect  string `yaml:"logout_redirect"`
}

type RoutesConfig struct {
	PublicExact    []string `yaml:"public_exact"`
	PublicPrefixes []string `yaml:"public_prefixes"`
}

type DatabaseConfig struct {
	DSN       string     `yaml:"dsn"`
	SeedUsers []SeedUser `yaml:"seed_users"`
}

// SeedUser is created on startup when missing. Development only.
type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:   ":8080",
			PublicDir: "./public",
		},
		Auth: AuthConfig{
			CookieName:      DefaultCookieName,
			LoginPath:       "/login",
			SuccessRedirect: "/",
			FailureRedirect: "/login?error",
			LogoutRedirect:  "/login?logout",
		},
		Routes: RoutesConfig{
			PublicExact:    append([]string(nil), DefaultPublicExact...),
			PublicPrefixes: append([]string(nil), DefaultPublicPrefixes...),
		},
		Database: DatabaseConfig{
			DSN: "file:authgate.db?cache=shared",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig builds the config from defaults, the optional YAML file at
// path and environment overrides, then validates it.
func LoadConfig(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := DefaultConfig()

	if path == "" {
		path = getenv(ConfigPathEnvVar)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("read config file %q", path)).
				WithTextCode("CONFIG_READ")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("parse config file %q", path)).
				WithTextCode("CONFIG_PARSE")
		}
	}

	cfg.applyEnv(getenv)

	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
			WithTextCode("CONFIG_INVALID")
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(AddressEnvVar); v != "" {
		c.Server.Address = v
	}
	if v := getenv(DatabaseDSNEnvVar); v != "" {
		c.Database.DSN = v
	}
}

// Validate checks required fields
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Address, validation.Required),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.CookieName, validation.Required, validation.By(noCRLF)),
		validation.Field(&c.Auth.LoginPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.Auth.SuccessRedirect, validation.Required, validation.By(noCRLF)),
		validation.Field(&c.Auth.FailureRedirect, validation.Required, validation.By(noCRLF)),
		validation.Field(&c.Auth.LogoutRedirect, validation.Required, validation.By(noCRLF)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := validation.ValidateStruct(&c.Routes,
		validation.Field(&c.Routes.PublicExact, validation.By(absolutePaths)),
		validation.Field(&c.Routes.PublicPrefixes, validation.By(absolutePaths)),
	); err != nil {
		return fmt.Errorf("routes: %w", err)
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.DSN, validation.Required),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	for i, u := range c.Database.SeedUsers {
		if err := validation.ValidateStruct(&u,
			validation.Field(&u.Username, validation.Required),
			validation.Field(&u.Password, validation.Required),
			validation.Field(&u.Role, validation.Required),
		); err != nil {
			return fmt.Errorf("database.seed_users[%d]: %w", i, err)
		}
	}

	return nil
}

func absolutePath(value any) error {
	s, _ := value.(string)
	if s != "" && !strings.HasPrefix(s, "/") {
		return errors.New("must start with /")
	}
	return noCRLF(value)
}

func absolutePaths(value any) error {
	paths, _ := value.([]string)
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("path %q must start with /", p)
		}
	}
	return nil
}

func noCRLF(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, "\r\n") {
		return errors.New("must not contain line breaks")
	}
	return nil
}
