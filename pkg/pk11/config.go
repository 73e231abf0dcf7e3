package pk11

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/coinbase/pk11-go/internal/bindings"
	"github.com/coinbase/pk11-go/pkg/pk11/logging"
)

// Engine names accepted in Config.Backend.
const (
	BackendSoft   = "soft"
	BackendPKCS11 = "pkcs11"
)

// PINEnv overrides Config.PIN when set, so the PIN can stay out of
// configuration files.
const PINEnv = "PK11_GO_PIN"

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("pk11: invalid config")

// Config selects and parameterizes the native engine. The zero value selects
// the built-in software token.
type Config struct {
	// Backend is "soft" (default) or "pkcs11".
	Backend string `yaml:"backend" validate:"omitempty,oneof=soft pkcs11"`

	// ModulePath is the PKCS#11 shared object, required for the pkcs11
	// backend.
	ModulePath string `yaml:"module_path" validate:"required_if=Backend pkcs11"`

	// SlotID pins a slot; otherwise TokenLabel is matched, and failing that
	// the first slot with a token is used.
	SlotID     *uint  `yaml:"slot_id"`
	TokenLabel string `yaml:"token_label" validate:"max=32"`
	PIN        string `yaml:"pin"`

	Log LogSettings `yaml:"log"`

	// Logger receives library log records. Nil keeps the current logger.
	Logger logging.Logger `yaml:"-" validate:"-"`
}

// LogSettings describes where the command line tool writes its logs. The
// library itself only uses Config.Logger.
type LogSettings struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Backend: BackendSoft,
		Log: LogSettings{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				messages = append(messages, fmt.Sprintf("Field: %s, Tag: %s", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("%w: %v", ErrInvalidConfig, messages)
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pk11: read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("pk11: parse config: %w", err)
	}
	if pin := os.Getenv(PINEnv); pin != "" {
		cfg.PIN = pin
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) library() (bindings.Library, error) {
	switch c.Backend {
	case "", BackendSoft:
		return bindings.NewSoft(), nil
	case BackendPKCS11:
		lib, err := bindings.NewPKCS11(bindings.PKCS11Options{
			ModulePath: c.ModulePath,
			SlotID:     c.SlotID,
			TokenLabel: c.TokenLabel,
			PIN:        c.PIN,
		})
		if err != nil {
			return nil, fmt.Errorf("pk11: %w", err)
		}
		return lib, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
}
