package mongodriver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) TestParse() {
	cfg, err := ParseConfig(strings.NewReader(`
uri: mongodb://localhost:27017
database: shop
appName: gedm
connectTimeout: 3s
maxPoolSize: 20
readPreference: secondaryPreferred
`))
	s.Require().NoError(err)
	s.Equal(Config{
		URI:            "mongodb://localhost:27017",
		Database:       "shop",
		AppName:        "gedm",
		ConnectTimeout: 3 * time.Second,
		MaxPoolSize:    20,
		ReadPreference: "secondaryPreferred",
	}, cfg)
}

func (s *ConfigTestSuite) TestParseUnknownField() {
	_, err := ParseConfig(strings.NewReader("uri: mongodb://x\ndatabase: d\nport: 1\n"))
	s.Error(err)
}

func (s *ConfigTestSuite) TestValidate() {
	s.ErrorIs(Config{Database: "d"}.Validate(), ErrMissingURI)
	s.ErrorIs(Config{URI: "mongodb://x"}.Validate(), ErrMissingDatabase)
	s.ErrorContains(Config{URI: "mongodb://x", Database: "d", ReadPreference: "closest"}.Validate(), "closest")
	s.NoError(Config{URI: "mongodb://x", Database: "d"}.Validate())
}

func (s *ConfigTestSuite) TestLoad() {
	path := filepath.Join(s.T().TempDir(), "mongo.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("uri: mongodb://x\ndatabase: d\n"), 0o600))

	cfg, err := LoadConfig(path)
	s.Require().NoError(err)
	s.Equal("d", cfg.Database)

	_, err = LoadConfig(filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *ConfigTestSuite) TestClientOptions() {
	cfg := Config{URI: "mongodb://x", Database: "d", AppName: "app", MaxPoolSize: 7, ReadPreference: "nearest"}
	opts, err := cfg.clientOptions()
	s.Require().NoError(err)
	s.Equal("app", *opts.AppName)
	s.Equal(uint64(7), *opts.MaxPoolSize)
	s.Equal(DefaultConnectTimeout, *opts.ConnectTimeout)
	s.Equal(readpref.NearestMode, opts.ReadPreference.Mode())
}

func (s *ConfigTestSuite) TestReadPreferences() {
	modes := map[string]readpref.Mode{
		"primary":            readpref.PrimaryMode,
		"primaryPreferred":   readpref.PrimaryPreferredMode,
		"secondary":          readpref.SecondaryMode,
		"secondaryPreferred": readpref.SecondaryPreferredMode,
		"nearest":            readpref.NearestMode,
	}
	for name, mode := range modes {
		rp, err := Config{ReadPreference: name}.readPref()
		s.Require().NoError(err)
		s.Equal(mode, rp.Mode(), name)
	}
	rp, err := Config{}.readPref()
	s.NoError(err)
	s.Nil(rp)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
