package intent

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/logging"
	"carsa.local/complaints/internal/model"
	"carsa.local/complaints/internal/prompts"
)

const fallbackConfidence = 0.5

// Entities are the identifiers the classifier pulls out of a message.
type Entities struct {
	OrderNumber string   `json:"order_number,omitempty"`
	VehicleReg  string   `json:"vehicle_reg,omitempty"`
	Email       string   `json:"email,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Name        string   `json:"name,omitempty"`
}

type Result struct {
	Intent     domain.Intent
	Confidence float64
	Entities   Entities
}

// Fallback is returned whenever the model output cannot be used.
func Fallback() Result {
	return Result{Intent: domain.IntentOther, Confidence: fallbackConfidence}
}

type Classifier struct {
	generator model.Generator
	log       logrus.FieldLogger
}

func NewClassifier(generator model.Generator, log logrus.FieldLogger) *Classifier {
	return &Classifier{generator: generator, log: logging.OrDiscard(log)}
}

type wireResult struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
	Entities   struct {
		OrderNumber *string  `json:"order_number"`
		VehicleReg  *string  `json:"vehicle_reg"`
		Email       *string  `json:"email"`
		Amount      *float64 `json:"amount"`
		Name        *string  `json:"name"`
	} `json:"entities"`
}

// Classify runs the fast tier over message. It never fails: generation and
// decode errors degrade to Fallback.
func (c *Classifier) Classify(ctx context.Context, message string) Result {
	raw, err := c.generator.Generate(ctx, model.TierFast, prompts.Intent(message))
	if err != nil {
		c.log.WithError(err).Warn("intent classification failed")
		return Fallback()
	}
	return Parse(raw, c.log)
}

// Parse decodes classifier output. Unknown intents map to OTHER.
func Parse(raw string, log logrus.FieldLogger) Result {
	log = logging.OrDiscard(log)

	var wire wireResult
	if err := model.DecodeJSON(raw, &wire); err != nil {
		log.WithError(err).Warn("intent output unparseable")
		return Fallback()
	}

	result := Result{
		Intent:     domain.Intent(strings.ToUpper(strings.TrimSpace(wire.Intent))),
		Confidence: fallbackConfidence,
		Entities: Entities{
			OrderNumber: deref(wire.Entities.OrderNumber),
			VehicleReg:  deref(wire.Entities.VehicleReg),
			Email:       deref(wire.Entities.Email),
			Amount:      wire.Entities.Amount,
			Name:        deref(wire.Entities.Name),
		},
	}
	if !result.Intent.Valid() {
		log.WithField("intent", wire.Intent).Debug("unknown intent mapped to OTHER")
		result.Intent = domain.IntentOther
	}
	if wire.Confidence != nil {
		result.Confidence = clamp(*wire.Confidence)
	}
	return result
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
