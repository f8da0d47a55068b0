package analyzer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/geometry"
)

// Env is the immutable context of a process: settings, static dictionary and
// the compiled geometry schema. It is built once at startup and shared.
type Env struct {
	Settings   config.Settings
	Dictionary *config.Dictionary
	Validator  *geometry.Validator
	Territory  geometry.Territory
	Logger     *zap.Logger
}

// NewEnv loads the dictionary named in settings and compiles the schema
func NewEnv(settings config.Settings, logger *zap.Logger) (*Env, error) {
	dict, err := config.LoadDictionary(settings.DictionaryPath)
	if err != nil {
		return nil, err
	}
	return NewEnvWithDictionary(settings, dict, logger)
}

// NewEnvWithDictionary builds an environment around an already loaded dictionary
func NewEnvWithDictionary(settings config.Settings, dict *config.Dictionary, logger *zap.Logger) (*Env, error) {
	validator, err := geometry.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to build geometry validator: %w", err)
	}
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	t := dict.Territory
	return &Env{
		Settings:   settings,
		Dictionary: dict,
		Validator:  validator,
		Territory:  geometry.NewTerritory(t.MinLat, t.MaxLat, t.MinLng, t.MaxLng),
		Logger:     logger,
	}, nil
}
