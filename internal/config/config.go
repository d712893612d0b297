// Package config loads the sneakerengine configuration.
//
// Configuration comes from, in increasing precedence: built-in defaults, a
// YAML file (--config or $SNEAKERENGINE_CONFIG), and the environment
// variables SNEAKERENGINE_API_URL and SNEAKERENGINE_DB. The file is checked
// against an embedded CUE schema before it is decoded, and the merged
// result is checked again with struct validation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/notify"
)

//go:embed config.cue
var schemaSource string

// Environment variables.
const (
	EnvConfig = "SNEAKERENGINE_CONFIG"
	EnvAPIURL = "SNEAKERENGINE_API_URL"
	EnvDB     = "SNEAKERENGINE_DB"
)

// Error codes.
const (
	ErrCodeRead    = "C001" // File could not be read
	ErrCodeParse   = "C002" // File is not valid YAML
	ErrCodeSchema  = "C003" // File does not match the schema
	ErrCodeInvalid = "C004" // Merged configuration is invalid
)

// Error is a configuration failure.
type Error struct {
	Code    string
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config is the resolved configuration.
type Config struct {
	APIURL          string        `yaml:"api_url" validate:"required,url"`
	DBPath          string        `yaml:"db_path" validate:"required"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
	NotificationTTL time.Duration `yaml:"notification_ttl" validate:"gte=0"`

	// AmbientDark overrides the terminal's light/dark signal when set.
	AmbientDark *bool `yaml:"ambient_dark"`

	Breaker Breaker `yaml:"breaker"`

	// Source is the file the configuration was read from, if any.
	Source string `yaml:"-"`
}

// Breaker holds the API circuit breaker settings.
type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" validate:"gte=1"`
}

// Default returns the built-in configuration.
func Default() *Config {
	b := api.DefaultBreakerConfig()
	return &Config{
		APIURL:          "http://localhost:8000",
		DBPath:          DefaultDBPath(),
		RequestTimeout:  10 * time.Second,
		NotificationTTL: notify.DefaultTTL,
		Breaker: Breaker{
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval,
			Timeout:          b.Timeout,
			FailureThreshold: b.FailureThreshold,
			MinRequests:      b.MinRequests,
		},
	}
}

// DefaultDBPath is the state database under the user config directory,
// or the working directory when that is unknown.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sneakerengine.db"
	}
	return filepath.Join(dir, "sneakerengine", "state.db")
}

// BreakerConfig converts the breaker settings for the API client.
func (c *Config) BreakerConfig() api.BreakerConfig {
	return api.BreakerConfig{
		MaxRequests:      c.Breaker.MaxRequests,
		Interval:         c.Breaker.Interval,
		Timeout:          c.Breaker.Timeout,
		FailureThreshold: c.Breaker.FailureThreshold,
		MinRequests:      c.Breaker.MinRequests,
	}
}

// Load resolves the configuration. path may be empty, in which case
// $SNEAKERENGINE_CONFIG is consulted; with neither set no file is read.
// getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(getenv(EnvDB)); v != "" {
		cfg.DBPath = v
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Code: ErrCodeRead, Path: path, Message: err.Error()}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &Error{Code: ErrCodeParse, Path: path, Message: err.Error()}
	}
	if len(doc) > 0 {
		if err := checkSchema(doc); err != nil {
			return &Error{Code: ErrCodeSchema, Path: path, Message: err.Error()}
		}
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return &Error{Code: ErrCodeParse, Path: path, Message: err.Error()}
	}
	c.Source = path
	return nil
}

// checkSchema unifies doc with #Config and requires a concrete result.
func checkSchema(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("config.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return err
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

var validate = validator.New()

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Code: ErrCodeInvalid, Message: err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return &Error{Code: ErrCodeInvalid, Message: strings.Join(msgs, "; ")}
}
