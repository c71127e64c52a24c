package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mhrivnak/vcompute/pkg/retry"
)

// EnvPrefix is prepended to every environment override, e.g. VCOMPUTE_VCLOUD_ENDPOINT
const EnvPrefix = "VCOMPUTE"

type Config struct {
	VCloud struct {
		Endpoint           string        `mapstructure:"endpoint"`
		Org                string        `mapstructure:"org"`
		Username           string        `mapstructure:"username"`
		Password           string        `mapstructure:"password"`
		InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
		RequestTimeout     time.Duration `mapstructure:"request_timeout"`
		AccountNumber      string        `mapstructure:"account_number"`
		Region             string        `mapstructure:"region"`
	} `mapstructure:"vcloud"`

	Orchestrator struct {
		PollInterval     time.Duration `mapstructure:"poll_interval"`
		LaunchTimeout    time.Duration `mapstructure:"launch_timeout"`
		TerminateTimeout time.Duration `mapstructure:"terminate_timeout"`
		DeleteRetry      retry.Config  `mapstructure:"delete_retry"`
	} `mapstructure:"orchestrator"`

	API struct {
		Port    int    `mapstructure:"port"`
		TLSCert string `mapstructure:"tls_cert"`
		TLSKey  string `mapstructure:"tls_key"`
	} `mapstructure:"api"`

	Auth struct {
		JWTSecret         string        `mapstructure:"jwt_secret"`
		TokenExpiry       time.Duration `mapstructure:"token_expiry"`
		AdminUser         string        `mapstructure:"admin_user"`
		AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	} `mapstructure:"auth"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vcloud.endpoint", "")
	v.SetDefault("vcloud.org", "")
	v.SetDefault("vcloud.username", "")
	v.SetDefault("vcloud.password", "")
	v.SetDefault("vcloud.insecure_skip_verify", false)
	v.SetDefault("vcloud.request_timeout", "60s")
	v.SetDefault("vcloud.account_number", "")
	v.SetDefault("vcloud.region", "")

	deleteRetry := retry.DefaultConfig()
	v.SetDefault("orchestrator.poll_interval", "5s")
	v.SetDefault("orchestrator.launch_timeout", "0s")
	v.SetDefault("orchestrator.terminate_timeout", "0s")
	v.SetDefault("orchestrator.delete_retry.max_attempts", deleteRetry.MaxAttempts)
	v.SetDefault("orchestrator.delete_retry.initial_delay", deleteRetry.InitialDelay.String())
	v.SetDefault("orchestrator.delete_retry.max_delay", deleteRetry.MaxDelay.String())
	v.SetDefault("orchestrator.delete_retry.backoff_multiple", deleteRetry.BackoffMultiple)

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.tls_cert", "")
	v.SetDefault("api.tls_key", "")

	// JWT secret MUST be explicitly configured - no insecure default.
	// The key is always registered so AutomaticEnv can bind the override.
	v.SetDefault("auth.jwt_secret", "")
	if os.Getenv(EnvPrefix+"_AUTH_JWT_SECRET") == "" {
		log.Println("WARNING: JWT secret not configured. Set " + EnvPrefix + "_AUTH_JWT_SECRET environment variable.")
		v.SetDefault("auth.jwt_secret", "development-secret-change-in-production")
	}
	v.SetDefault("auth.token_expiry", "24h")
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads defaults, an optional config.yaml in . or /etc/vcompute/, and
// VCOMPUTE_* environment overrides.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), "")
}

// LoadFrom reads configuration into v. A non-empty file is read instead of
// searching the default locations and must exist.
func LoadFrom(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vcompute/")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ValidateVCloud checks that the control-plane connection settings are present
func (c *Config) ValidateVCloud() error {
	var missing []string
	if c.VCloud.Endpoint == "" {
		missing = append(missing, "vcloud.endpoint")
	}
	if c.VCloud.Org == "" {
		missing = append(missing, "vcloud.org")
	}
	if c.VCloud.Username == "" {
		missing = append(missing, "vcloud.username")
	}
	if c.VCloud.Password == "" {
		missing = append(missing, "vcloud.password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Orchestrator.PollInterval <= 0 {
		return fmt.Errorf("orchestrator.poll_interval must be positive, got %s", c.Orchestrator.PollInterval)
	}
	return nil
}
