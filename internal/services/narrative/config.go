package narrative

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"Naly/pkg/apperr"
)

// Config tunes the generator. QualityThreshold is on the 0-100 scale.
type Config struct {
	QualityThreshold float64 `default:"70" validate:"gte=0,lte=100"`
	AutoValidate     bool
	IncludeDeepDive  bool
	TargetAudience   string `default:"retail" validate:"oneof=retail professional institutional"`
}

var validate = validator.New()

// NewConfig applies defaults to cfg and validates it.
func NewConfig(cfg Config) (Config, error) {
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, apperr.Validation("narrative config defaults: %v", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, apperr.Validation("narrative config: %v", err)
	}
	return cfg, nil
}
