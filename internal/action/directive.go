package action

import (
	"fmt"
	"strconv"
	"strings"

	"carsa.local/complaints/internal/domain"
)

// Directive is one action the assistant asked to take. The set of variants
// is closed; Unknown carries any unrecognised type tag.
type Directive interface {
	Type() domain.ActionType
	directive()
}

// Refund and Compensation set Unparsed when the model's amount was missing
// or not a number; such directives are never authorized.
type Refund struct {
	Amount   float64
	Unparsed bool
}

type Compensation struct {
	// Kind is the model's label for the compensation, e.g. "discount" or
	// "percent_discount".
	Kind     string
	Value    float64
	Unparsed bool
}

type Reship struct {
	Item string
}

type CreateTicket struct {
	Description string
}

type ScheduleCallback struct {
	Reason string
}

type Escalate struct {
	Reason string
}

type Unknown struct {
	Tag string
}

func (Refund) Type() domain.ActionType           { return domain.ActionRefund }
func (Compensation) Type() domain.ActionType     { return domain.ActionCompensation }
func (Reship) Type() domain.ActionType           { return domain.ActionReship }
func (CreateTicket) Type() domain.ActionType     { return domain.ActionCreateTicket }
func (ScheduleCallback) Type() domain.ActionType { return domain.ActionScheduleCallback }
func (Escalate) Type() domain.ActionType         { return domain.ActionEscalate }
func (u Unknown) Type() domain.ActionType        { return domain.ActionType(u.Tag) }

func (Refund) directive()           {}
func (Compensation) directive()     {}
func (Reship) directive()           {}
func (CreateTicket) directive()     {}
func (ScheduleCallback) directive() {}
func (Escalate) directive()         {}
func (Unknown) directive()          {}

// FromWire builds a directive from the {type, params} object emitted by the
// model. Missing or mistyped text params decode to empty strings.
func FromWire(tag string, params map[string]any) Directive {
	switch domain.ActionType(strings.ToUpper(strings.TrimSpace(tag))) {
	case domain.ActionRefund:
		amount, ok := number(params["amount"])
		return Refund{Amount: amount, Unparsed: !ok}
	case domain.ActionCompensation:
		value, ok := number(params["value"])
		return Compensation{Kind: text(params["type"]), Value: value, Unparsed: !ok}
	case domain.ActionReship:
		return Reship{Item: text(params["item"])}
	case domain.ActionCreateTicket:
		return CreateTicket{Description: text(params["description"])}
	case domain.ActionScheduleCallback:
		return ScheduleCallback{Reason: text(params["reason"])}
	case domain.ActionEscalate:
		return Escalate{Reason: text(params["reason"])}
	default:
		return Unknown{Tag: tag}
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(n), "£"), 64)
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return fmt.Sprint(s)
	}
}

// money renders an amount the way customers see it: no trailing zeros.
func money(v float64) string {
	return "£" + strconv.FormatFloat(v, 'f', -1, 64)
}
