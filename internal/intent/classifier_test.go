package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/model"
)

type stubGenerator struct {
	output string
	err    error
	tier   string
	prompt string
}

func (s *stubGenerator) Generate(_ context.Context, tier, prompt string) (string, error) {
	s.tier = tier
	s.prompt = prompt
	return s.output, s.err
}

func TestClassifyUsesFastTier(t *testing.T) {
	gen := &stubGenerator{output: "```json\n{\"intent\":\"MISSING_ITEM\",\"confidence\":0.92,\"entities\":{\"order_number\":\"ORD-2024-00001\",\"vehicle_reg\":null,\"email\":\"james.wilson@email.com\",\"amount\":null,\"name\":\"James\"}}\n```"}
	got := NewClassifier(gen, nil).Classify(context.Background(), "My floor mats never arrived")

	if gen.tier != model.TierFast {
		t.Fatalf("expected fast tier, got %q", gen.tier)
	}
	if !strings.HasSuffix(gen.prompt, "Customer message: My floor mats never arrived") {
		t.Fatalf("unexpected prompt suffix")
	}
	if got.Intent != domain.IntentMissingItem || got.Confidence != 0.92 {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.Entities.OrderNumber != "ORD-2024-00001" || got.Entities.Email != "james.wilson@email.com" || got.Entities.Name != "James" {
		t.Fatalf("unexpected entities %+v", got.Entities)
	}
	if got.Entities.VehicleReg != "" || got.Entities.Amount != nil {
		t.Fatalf("expected null entities to stay empty: %+v", got.Entities)
	}
}

func TestClassifyFallsBackOnGenerationError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("exhausted")}
	got := NewClassifier(gen, nil).Classify(context.Background(), "hello")
	if got != Fallback() {
		t.Fatalf("expected fallback, got %+v", got)
	}
}

func TestParse(t *testing.T) {
	amount := 150.0
	cases := []struct {
		name string
		raw  string
		want Result
	}{
		{name: "malformed", raw: "I think this is a refund", want: Fallback()},
		{name: "empty", raw: "", want: Fallback()},
		{name: "unknown intent", raw: `{"intent":"CANCEL_ORDER","confidence":0.8,"entities":{}}`, want: Result{Intent: domain.IntentOther, Confidence: 0.8}},
		{name: "missing confidence", raw: `{"intent":"greeting"}`, want: Result{Intent: domain.IntentGreeting, Confidence: 0.5}},
		{name: "clamped", raw: `{"intent":"REFUND_REQUEST","confidence":3,"entities":{"amount":150}}`, want: Result{Intent: domain.IntentRefundRequest, Confidence: 1, Entities: Entities{Amount: &amount}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.raw, nil)
			if got.Intent != tc.want.Intent || got.Confidence != tc.want.Confidence {
				t.Fatalf("Parse() = %+v, want %+v", got, tc.want)
			}
			if (got.Entities.Amount == nil) != (tc.want.Entities.Amount == nil) {
				t.Fatalf("amount mismatch: %+v", got.Entities)
			}
			if got.Entities.Amount != nil && *got.Entities.Amount != *tc.want.Entities.Amount {
				t.Fatalf("amount = %v, want %v", *got.Entities.Amount, *tc.want.Entities.Amount)
			}
		})
	}
}
