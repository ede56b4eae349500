// package config reads the settings of the cvsweep command from the
// environment. Values in a .env file in the working directory are loaded
// first; variables already set in the environment take precedence.
package config

import (
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Prefix is the prefix of every variable read by Load.
const Prefix = "CROSSVAL_"

type Config struct {
	Folds              int
	Seed               uint64
	Workers            int
	ValidationFraction float64
	Increments         int
	Delimiter          rune

	RedisConf RedisConfig
}

type RedisConfig struct {
	Addr     string // empty means results are kept in memory
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		Folds:              5,
		Seed:               3,
		Workers:            0,
		ValidationFraction: 0.2,
		Increments:         10,
		Delimiter:          ';',
		RedisConf: RedisConfig{
			Prefix: "crossval:",
		},
	}
}

// Load loads .env files (a missing file is not an error) and returns the
// configuration from the environment. files defaults to ".env".
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "config: loading %s", f)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from the variables returned by lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	p := parser{lookup: lookup}
	c.Folds = p.int("FOLDS", c.Folds)
	c.Seed = p.uint64("SEED", c.Seed)
	c.Workers = p.int("WORKERS", c.Workers)
	c.ValidationFraction = p.float("VALIDATION_FRACTION", c.ValidationFraction)
	c.Increments = p.int("INCREMENTS", c.Increments)
	c.Delimiter = p.rune("DELIMITER", c.Delimiter)
	c.RedisConf.Addr = p.string("REDIS_ADDR", c.RedisConf.Addr)
	c.RedisConf.Password = p.string("REDIS_PASSWORD", c.RedisConf.Password)
	c.RedisConf.DB = p.int("REDIS_DB", c.RedisConf.DB)
	c.RedisConf.Prefix = p.string("REDIS_PREFIX", c.RedisConf.Prefix)
	c.RedisConf.TTL = p.duration("REDIS_TTL", c.RedisConf.TTL)
	if p.err != nil {
		return nil, p.err
	}
	return c, nil
}

// parser records the first malformed variable.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(name string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(Prefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *parser) fail(name, v string, err error) {
	p.err = errors.Wrapf(err, "config: %s%s=%q", Prefix, name, v)
}

func (p *parser) string(name, def string) string {
	v, ok := p.get(name)
	if !ok {
		return def
	}
	return v
}

func (p *parser) int(name string, def int) int {
	v, ok := p.get(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, v, err)
		return def
	}
	return n
}

func (p *parser) uint64(name string, def uint64) uint64 {
	v, ok := p.get(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.fail(name, v, err)
		return def
	}
	return n
}

func (p *parser) float(name string, def float64) float64 {
	v, ok := p.get(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(name, v, err)
		return def
	}
	return f
}

func (p *parser) duration(name string, def time.Duration) time.Duration {
	v, ok := p.get(name)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(name, v, err)
		return def
	}
	return d
}

func (p *parser) rune(name string, def rune) rune {
	v, ok := p.get(name)
	if !ok {
		return def
	}
	if v == `\t` {
		return '\t'
	}
	r, size := utf8.DecodeRuneInString(v)
	if size != len(v) || r == utf8.RuneError {
		p.fail(name, v, errors.New("delimiter must be a single character"))
		return def
	}
	return r
}
