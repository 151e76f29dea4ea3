package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// The report archive is only enabled when Host is set.
type DatabaseConfig struct {
	Host               string `env:"DB_HOST"`
	Port               string `env:"DB_PORT" envDefault:"5432"`
	User               string `env:"DB_USER"`
	Password           string `env:"DB_PASSWORD"`
	Name               string `env:"DB_NAME"`
	SSLMode            string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetimeSec int    `env:"DB_CONN_MAX_LIFETIME_SEC" envDefault:"300"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint      string        `env:"MINIO_ENDPOINT"`
	AccessKey     string        `env:"MINIO_ACCESS_KEY"`
	SecretKey     string        `env:"MINIO_SECRET_KEY"`
	Bucket        string        `env:"MINIO_BUCKET" envDefault:"eln-reports"`
	UseSSL        bool          `env:"MINIO_USE_SSL" envDefault:"false"`
	PresignExpiry time.Duration `env:"MINIO_PRESIGN_EXPIRY" envDefault:"15m"`
}

// ReportConfig holds the inputs of the XML to PDF conversion.
type ReportConfig struct {
	SchemaDir      string `env:"SCHEMA_DIR" envDefault:"schemas"`
	LogoPath       string `env:"LOGO_PATH" envDefault:"assets/logo.png"`
	// FontPath is an optional TrueType font for text outside Windows-1252.
	FontPath       string `env:"REPORT_FONT_PATH"`
	MaxUploadBytes int    `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
//
// Port is kept as the raw PORT string: the hosting platform injects it when
// the container starts and it is validated by deploy.ResolveListenAddr.
type AppConfig struct {
	Host        string `env:"HOST" envDefault:"0.0.0.0"`
	Port        string `env:"PORT"`
	TimeZone    string `env:"APP_TIMEZONE" envDefault:"UTC"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Report      ReportConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ArchiveEnabled reports whether both a database and an object store are configured.
func (c *AppConfig) ArchiveEnabled() bool {
	return c.Database.Host != "" && c.MinIO.Endpoint != ""
}

// Location resolves TimeZone, falling back to UTC for unknown names.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
