package prediction

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"Naly/internal/domain/models"
	"Naly/pkg/apperr"
)

// Config tunes the engine. Nil ModelWeights means DefaultModelWeights.
type Config struct {
	ModelWeights    models.ModelWeights
	LookbackDays    int     `default:"90" validate:"min=10,max=3650"`
	MinConfidence   float64 `validate:"gte=0,lte=1"`
	UseLLMScenarios bool
}

var validate = validator.New()

// NewConfig applies defaults to cfg and validates it.
func NewConfig(cfg Config) (Config, error) {
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, apperr.Validation("prediction config defaults: %v", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, apperr.Validation("prediction config: %v", err)
	}
	if cfg.ModelWeights == nil {
		cfg.ModelWeights = models.DefaultModelWeights()
	}
	if err := validateWeights(cfg.ModelWeights); err != nil {
		return Config{}, err
	}
	cfg.ModelWeights = copyWeights(cfg.ModelWeights)
	return cfg, nil
}

func validateWeights(w models.ModelWeights) error {
	var total float64
	for mt, v := range w {
		switch mt {
		case models.ModelLSTM, models.ModelRandomForest, models.ModelLinearRegression, models.ModelARIMA:
		default:
			return apperr.Validation("unknown model type %q in weights", mt)
		}
		if v < 0 {
			return apperr.Validation("weight for %s must not be negative", mt)
		}
		total += v
	}
	if total <= 0 {
		return apperr.Validation("model weights must sum to a positive value")
	}
	return nil
}

func copyWeights(w models.ModelWeights) models.ModelWeights {
	out := make(models.ModelWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
