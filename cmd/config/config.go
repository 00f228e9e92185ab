package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	DBUrl      string `envconfig:"DB_URL" required:"true"`
	SecretKey  string `envconfig:"SECRET_KEY" required:"true"`

	LogPath string `envconfig:"LOG_PATH" default:"logs/"`
	Debug   bool   `envconfig:"DEBUG" default:"false"`

	// Unpaid pending bookings older than this are auto-cancelled. Zero
	// disables the sweep.
	PendingTTLMinutes int `envconfig:"PENDING_TTL_MINUTES" default:"30"`
	SweepIntervalSecs int `envconfig:"SWEEP_INTERVAL_SECONDS" default:"60"`

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
	MailFrom string `envconfig:"MAIL_FROM"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLMinutes) * time.Minute
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}
