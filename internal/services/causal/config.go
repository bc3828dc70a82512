package causal

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"Naly/pkg/apperr"
)

// Config tunes the analyzer. Zero numeric fields take their defaults.
type Config struct {
	ConfidenceThreshold float64 `default:"0.3" validate:"gte=0,lte=1"`
	MaxFactors          int     `default:"5" validate:"min=1,max=10"`
	UseCache            bool
	LookbackDays        int `default:"30" validate:"min=1,max=365"`
	MaxAlternatives     int `default:"3" validate:"min=1,max=10"`
}

var validate = validator.New()

// NewConfig applies defaults to cfg and validates it.
func NewConfig(cfg Config) (Config, error) {
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, apperr.Validation("causal config defaults: %v", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, apperr.Validation("causal config: %v", err)
	}
	return cfg, nil
}
