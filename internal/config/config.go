// Package config loads service configuration from configs/sentry.yaml,
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmerrifield20/TrafficSentry/internal/features"
	"github.com/jmerrifield20/TrafficSentry/internal/inference"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved service configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Model    inference.ModelConfig
	Probe    time.Duration
	Snapshot string
	Mail     MailConfig
	Events   EventsConfig
	Bounds   *features.Bounds
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         int
	CORSOrigins  []string
	RateLimitRPS int
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string
	Format string
}

// MailConfig configures the SMTP transport and notification recipient.
type MailConfig struct {
	SMTPHost  string
	SMTPPort  int
	Username  string
	Password  string
	From      string
	Recipient string
}

// EventsConfig configures the optional NATS verdict publisher.
type EventsConfig struct {
	NATSURL string
	Subject string
}

// Options controls where Load looks for files.
type Options struct {
	// ConfigFile, when set, is read instead of searching for sentry.yaml.
	ConfigFile string

	// EnvFiles are loaded with godotenv before reading the environment.
	// Missing files are skipped. Defaults to ".env".
	EnvFiles []string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("model.path", "models/traffic_dense.json")
	v.SetDefault("model.serving_url", "")
	v.SetDefault("model.name", "traffic")
	v.SetDefault("model.timeout", "10s")
	v.SetDefault("model.probe_interval", "30s")
	v.SetDefault("snapshot.path", "normalized_data.csv")
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 465)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.recipient", "")
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject", "traffic.verdicts")
}

// Load reads configuration. A missing config file is not an error; a
// malformed one, or an invalid bounds table, is.
func Load(opts Options) (*Config, bool, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("sentry")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	// Mail credentials use the conventional variable names.
	_ = v.BindEnv("mail.username", "MAIL_USERNAME")
	_ = v.BindEnv("mail.password", "MAIL_PASSWORD")

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, false, fmt.Errorf("read config: %w", err)
		}
		fileFound = false
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, fileFound, err
	}
	return cfg, fileFound, nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	timeout, err := parseDuration(v, "model.timeout")
	if err != nil {
		return nil, err
	}
	probe, err := parseDuration(v, "model.probe_interval")
	if err != nil {
		return nil, err
	}

	bounds, err := loadBounds(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			CORSOrigins:  v.GetStringSlice("server.cors_origins"),
			RateLimitRPS: v.GetInt("server.rate_limit_rps"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Model: inference.ModelConfig{
			Path:       v.GetString("model.path"),
			ServingURL: v.GetString("model.serving_url"),
			Name:       v.GetString("model.name"),
			Timeout:    timeout,
		},
		Probe:    probe,
		Snapshot: v.GetString("snapshot.path"),
		Mail: MailConfig{
			SMTPHost:  v.GetString("mail.smtp_host"),
			SMTPPort:  v.GetInt("mail.smtp_port"),
			Username:  v.GetString("mail.username"),
			Password:  v.GetString("mail.password"),
			From:      v.GetString("mail.from"),
			Recipient: v.GetString("mail.recipient"),
		},
		Events: EventsConfig{
			NATSURL: v.GetString("events.nats_url"),
			Subject: v.GetString("events.subject"),
		},
		Bounds: bounds,
	}, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return d, nil
}

// loadBounds reads features.bounds, a map of feature name to {min, max}.
// Configured entries override the defaults and the table keeps tensor order.
// A name that is not a known feature is rejected.
func loadBounds(v *viper.Viper) (*features.Bounds, error) {
	overrides := map[string]features.Bound{}
	if v.IsSet("features.bounds") {
		if err := v.UnmarshalKey("features.bounds", &overrides); err != nil {
			return nil, fmt.Errorf("config features.bounds: %w", err)
		}
	}

	entries := features.DefaultEntries()
	for k := range overrides {
		known := false
		for _, e := range entries {
			if strings.EqualFold(k, e.Name) {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("config features.bounds: %w: unknown feature %q", features.ErrInvalidBound, k)
		}
	}
	for i, e := range entries {
		if b, ok := lookupFold(overrides, e.Name); ok {
			entries[i].Bound = b
		}
	}

	bounds, err := features.NewBounds(entries...)
	if err != nil {
		return nil, fmt.Errorf("config features.bounds: %w", err)
	}
	return bounds, nil
}

// lookupFold finds name in m ignoring case; viper lower-cases map keys.
func lookupFold(m map[string]features.Bound, name string) (features.Bound, bool) {
	for k, b := range m {
		if strings.EqualFold(k, name) {
			return b, true
		}
	}
	return features.Bound{}, false
}
