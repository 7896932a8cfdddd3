package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/prepstack/billing/pkg/types"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type RazorpayConfig struct {
	KeyID         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type AuthConfig struct {
	JWTSecret       string   `mapstructure:"jwt_secret"`
	RevokedTokenIDs []string `mapstructure:"revoked_token_ids"`
}

// PaymentsConfig gates subscription creation. Enabled is the global kill
// switch; RolloutPercent and RolloutAllowlist define the cohort that can
// reach the payment flow at all.
type PaymentsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RolloutPercent    int           `mapstructure:"rollout_percent"`
	RolloutAllowlist  []string      `mapstructure:"rollout_allowlist"`
	Plans             []*types.Plan `mapstructure:"plans"`
	DefaultReturnPath string        `mapstructure:"default_return_path"`
}

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type Config struct {
	Env         Env             `mapstructure:"env"`
	Server      ServerConfig    `mapstructure:"server"`
	AppBaseURL  string          `mapstructure:"app_base_url"`
	Firestore   FirestoreConfig `mapstructure:"firestore"`
	Razorpay    RazorpayConfig  `mapstructure:"razorpay"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Payments    PaymentsConfig  `mapstructure:"payments"`
	MetricsAddr string          `mapstructure:"metrics_addr"`
}

func (c *Config) GetPlanByID(id string) *types.Plan {
	for _, p := range c.Payments.Plans {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func New() (*Config, error) {
	v := viper.New()
	// Allow overriding config file via env:
	// - APP_CONFIG_FILE: absolute or relative file path (e.g., /etc/app/prod.yaml)
	// - APP_CONFIG_NAME: config base name without extension (default: "config")
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("APP_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "config"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "dev")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8888)
	v.SetDefault("metrics_addr", ":90")
	v.SetDefault("payments.enabled", true)
	v.SetDefault("payments.rollout_percent", 100)
	v.SetDefault("payments.default_return_path", "/dashboard/billing")

	if err := v.ReadInConfig(); err != nil {
		_ = err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &c, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
