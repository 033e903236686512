package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	AppName     string `env:"APP_NAME" envDefault:"PaisaPe"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"PaisaPe"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OTPTTLMinutes           int `env:"OTP_TTL_MINUTES" envDefault:"10"`
	OTPRequestLimit         int `env:"OTP_REQUEST_LIMIT" envDefault:"3"`
	OTPRequestWindowMinutes int `env:"OTP_REQUEST_WINDOW_MINUTES" envDefault:"10"`

	// 0 desactiva el límite de giros.
	SpinLimitPerHour int `env:"SPIN_LIMIT_PER_HOUR" envDefault:"0"`

	CheckInTimezone          string `env:"CHECKIN_TIMEZONE" envDefault:"UTC"`
	ReconcileIntervalMinutes int    `env:"RECONCILE_INTERVAL_MINUTES" envDefault:"5"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.CheckInLocation(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CheckInLocation resuelve la zona horaria que define el "día calendario" del check-in.
func (c *Config) CheckInLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.CheckInTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKIN_TIMEZONE %q: %w", c.CheckInTimezone, err)
	}
	return loc, nil
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

func (c *Config) OTPRequestWindow() time.Duration {
	return time.Duration(c.OTPRequestWindowMinutes) * time.Minute
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMinutes) * time.Minute
}
