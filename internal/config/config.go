package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Inference struct {
		APIKey  string        `yaml:"apiKey"`
		BaseURL string        `yaml:"baseURL"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"inference"`

	Renderer struct {
		Mode    string        `yaml:"mode"` // local | docker
		Binary  string        `yaml:"binary"`
		Image   string        `yaml:"image"`
		TempDir string        `yaml:"tempDir"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"renderer"`

	Previews struct {
		Driver       string        `yaml:"driver"` // memory | minio
		MaxDimension int           `yaml:"maxDimension"`
		MaxPixels    int           `yaml:"maxPixels"`
		URLExpiry    time.Duration `yaml:"urlExpiry"`
	} `yaml:"previews"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Audit struct {
		Driver string `yaml:"driver"` // none | mysql | postgres
	} `yaml:"audit"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Upload struct {
		MaxBytes int64 `yaml:"maxBytes"`
	} `yaml:"upload"`

	Session struct {
		TTL          time.Duration `yaml:"ttl"`
		SweepEvery   time.Duration `yaml:"sweepEvery"`
		CookieName   string        `yaml:"cookieName"`
		SecureCookie bool          `yaml:"secureCookie"`
	} `yaml:"session"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Log struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"log"`
}

// Load baca file config, a missing file means defaults. OPENAI_API_KEY and
// PORT override the file.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Inference.APIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = p
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setInt(&c.Server.Port, 8080)
	setDur(&c.Server.ReadTimeout, 30*time.Second)
	setDur(&c.Server.WriteTimeout, 60*time.Second)
	setDur(&c.Server.ShutdownTimeout, 30*time.Second)

	setStr(&c.Inference.Model, "gpt-4o")
	setDur(&c.Inference.Timeout, 2*time.Minute)

	setStr(&c.Renderer.Mode, "local")
	setStr(&c.Renderer.Binary, "mmdc")
	setStr(&c.Renderer.Image, "minlag/mermaid-cli:latest")
	setDur(&c.Renderer.Timeout, 30*time.Second)

	setStr(&c.Previews.Driver, "memory")
	setInt(&c.Previews.MaxDimension, 1024)
	setInt(&c.Previews.MaxPixels, 40_000_000)
	setDur(&c.Previews.URLExpiry, time.Hour)

	setStr(&c.Minio.BucketName, "sketch-previews")
	setStr(&c.Minio.Region, "us-east-1")

	setStr(&c.Audit.Driver, "none")
	setStr(&c.Database.SSLMode, "disable")

	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 10 << 20
	}

	setDur(&c.Session.TTL, 30*time.Minute)
	setDur(&c.Session.SweepEvery, 5*time.Minute)
	setStr(&c.Session.CookieName, "sketch2sys_session")

	setInt(&c.RateLimit.Capacity, 10)
	setInt(&c.RateLimit.RefillRate, 1)

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	setStr(&c.Log.Level, "info")
}

func (c *Config) validate() error {
	switch c.Renderer.Mode {
	case "local", "docker":
	default:
		return fmt.Errorf("renderer.mode must be local or docker, got %q", c.Renderer.Mode)
	}
	switch c.Previews.Driver {
	case "memory":
	case "minio":
		if c.Minio.Endpoint == "" {
			return errors.New("previews.driver minio needs minio.endpoint")
		}
	default:
		return fmt.Errorf("previews.driver must be memory or minio, got %q", c.Previews.Driver)
	}
	switch c.Audit.Driver {
	case "none", "mysql", "postgres":
	default:
		return fmt.Errorf("audit.driver must be none, mysql or postgres, got %q", c.Audit.Driver)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func setStr(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p <= 0 {
		*p = v
	}
}

func setDur(p *time.Duration, v time.Duration) {
	if *p <= 0 {
		*p = v
	}
}
