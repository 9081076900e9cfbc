package mongodriver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"gopkg.in/yaml.v3"
)

// DefaultConnectTimeout bounds the initial ping of [Connect].
const DefaultConnectTimeout = 10 * time.Second

var (
	// ErrMissingURI is returned for configurations without URI.
	ErrMissingURI = errors.New("mongodriver: missing uri")
	// ErrMissingDatabase is returned for configurations without database.
	ErrMissingDatabase = errors.New("mongodriver: missing database")
)

// Config describes how to reach a MongoDB deployment.
type Config struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	AppName        string        `yaml:"appName"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	MaxPoolSize    uint64        `yaml:"maxPoolSize"`
	// ReadPreference is one of primary, primaryPreferred, secondary,
	// secondaryPreferred or nearest. Empty keeps the URI setting.
	ReadPreference string `yaml:"readPreference"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes a YAML configuration and validates it.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("mongodriver: decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the required fields and the read preference.
func (c Config) Validate() error {
	if c.URI == "" {
		return ErrMissingURI
	}
	if c.Database == "" {
		return ErrMissingDatabase
	}
	if _, err := c.readPref(); err != nil {
		return err
	}
	return nil
}

func (c Config) readPref() (*readpref.ReadPref, error) {
	switch c.ReadPreference {
	case "":
		return nil, nil
	case "primary":
		return readpref.Primary(), nil
	case "primaryPreferred":
		return readpref.PrimaryPreferred(), nil
	case "secondary":
		return readpref.Secondary(), nil
	case "secondaryPreferred":
		return readpref.SecondaryPreferred(), nil
	case "nearest":
		return readpref.Nearest(), nil
	}
	return nil, fmt.Errorf("mongodriver: unknown read preference %q", c.ReadPreference)
}

func (c Config) timeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// clientOptions translates c into driver client options.
func (c Config) clientOptions() (*options.ClientOptions, error) {
	opts := options.Client().ApplyURI(c.URI).SetConnectTimeout(c.timeout())
	if c.AppName != "" {
		opts.SetAppName(c.AppName)
	}
	if c.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(c.MaxPoolSize)
	}
	rp, err := c.readPref()
	if err != nil {
		return nil, err
	}
	if rp != nil {
		opts.SetReadPreference(rp)
	}
	return opts, nil
}
