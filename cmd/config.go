package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the global configuration of dsm. Flags override the environment.
type Config struct {
	APIURL    string        `env:"DSM_API_URL" envDefault:"http://localhost:8000"`
	Timeout   time.Duration `env:"DSM_TIMEOUT" envDefault:"15s"`
	RateLimit float64       `env:"DSM_RATE_LIMIT" envDefault:"10"`
	Verbose   bool          `env:"DSM_VERBOSE"`
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.
var config Config

// LoadConfig reads the optional dotenv file, then the environment.
func LoadConfig(dotenv string) (Config, error) {
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("cannot load %s: %w", dotenv, err)
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}
	return c, nil
}

// RegisterFlags binds the global flags to c, its values are the defaults.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.APIURL, "api", c.APIURL, "Backend url (DSM_API_URL)")
	f.DurationVar(&c.Timeout, "timeout", c.Timeout, "Timeout of each backend request (DSM_TIMEOUT)")
	f.Float64Var(&c.RateLimit, "rate", c.RateLimit, "Backend requests per second, 0 for no limit (DSM_RATE_LIMIT)")
	f.BoolVar(&c.Verbose, "v", c.Verbose, "Log debug messages (DSM_VERBOSE)")
}

// Init loads the configuration and registers the global flags on f. It must
// be called before f is parsed.
func Init(f *flag.FlagSet) error {
	c, err := LoadConfig(".env")
	if err != nil {
		return err
	}
	config = c
	config.RegisterFlags(f)
	return nil
}

// SetupLogging configures the global logger, once the flags are parsed.
func SetupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if config.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
