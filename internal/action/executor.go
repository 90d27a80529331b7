package action

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/logging"
	"carsa.local/complaints/internal/store"
)

// Outcome is what the assistant reports back after trying a directive.
type Outcome struct {
	Type        domain.ActionType
	Success     bool
	Description string
}

type Observer interface {
	ActionExecuted(actionType string, success bool)
}

type Executor struct {
	complaints store.ComplaintStore
	limits     Limits
	log        logrus.FieldLogger
	observer   Observer
	now        func() time.Time
}

type Option func(*Executor)

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Executor) { e.log = logging.OrDiscard(log) }
}

func WithObserver(observer Observer) Option {
	return func(e *Executor) { e.observer = observer }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

func NewExecutor(complaints store.ComplaintStore, limits Limits, opts ...Option) *Executor {
	e := &Executor{
		complaints: complaints,
		limits:     limits,
		log:        logging.Discard(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Limits() Limits {
	return e.limits
}

// Execute applies d to the complaint. Declined and unknown directives are
// reported through Outcome; err is only set when recording fails.
func (e *Executor) Execute(ctx context.Context, complaintID string, d Directive) (Outcome, error) {
	outcome, err := e.execute(ctx, complaintID, d)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"complaint_id": complaintID,
			"action":       d.Type(),
		}).Error("action failed")
		e.observe(d.Type(), false)
		return Outcome{Type: d.Type(), Description: "Action could not be recorded"}, err
	}
	e.log.WithFields(logrus.Fields{
		"complaint_id": complaintID,
		"action":       outcome.Type,
		"success":      outcome.Success,
	}).Info(outcome.Description)
	e.observe(outcome.Type, outcome.Success)
	return outcome, nil
}

func (e *Executor) execute(ctx context.Context, complaintID string, d Directive) (Outcome, error) {
	switch d := d.(type) {
	case Refund:
		if d.Unparsed || d.Amount < 0 {
			return declined(d, "Refund amount is missing or invalid"), nil
		}
		if !e.limits.RefundAuthorized(d.Amount) {
			return declined(d, fmt.Sprintf("Refund of %s exceeds AI authority limit", money(d.Amount))), nil
		}
		amount := d.Amount
		if err := e.record(ctx, complaintID, d.Type(), domain.ActionExecuted, &amount,
			fmt.Sprintf("Refund of %s processed", money(d.Amount))); err != nil {
			return Outcome{}, err
		}
		return succeeded(d, fmt.Sprintf("Refund of %s processed", money(d.Amount))), nil

	case Reship:
		if err := e.record(ctx, complaintID, d.Type(), domain.ActionExecuted, nil,
			fmt.Sprintf("Replacement %s to be shipped", d.Item)); err != nil {
			return Outcome{}, err
		}
		return succeeded(d, fmt.Sprintf("Replacement %s arranged", d.Item)), nil

	case Compensation:
		if d.Unparsed || d.Value < 0 {
			return declined(d, "Compensation value is missing or invalid"), nil
		}
		if !e.limits.DiscountAuthorized(d.Value, isPercentKind(d.Kind)) {
			return declined(d, fmt.Sprintf("Compensation of %s exceeds AI authority limit", compensationAmount(d))), nil
		}
		value := d.Value
		if err := e.record(ctx, complaintID, d.Type(), domain.ActionExecuted, &value,
			fmt.Sprintf("%s: %s credit/discount issued", d.Kind, money(d.Value))); err != nil {
			return Outcome{}, err
		}
		return succeeded(d, fmt.Sprintf("Compensation of %s issued", money(d.Value))), nil

	case CreateTicket:
		if err := e.record(ctx, complaintID, d.Type(), domain.ActionExecuted, nil,
			"Internal ticket created: "+d.Description); err != nil {
			return Outcome{}, err
		}
		return succeeded(d, "Internal ticket created"), nil

	case ScheduleCallback:
		if err := e.record(ctx, complaintID, d.Type(), domain.ActionPending, nil,
			"Human callback scheduled within 2 hours"); err != nil {
			return Outcome{}, err
		}
		return succeeded(d, "Callback scheduled"), nil

	case Escalate:
		if err := e.record(ctx, complaintID, d.Type(), domain.ActionExecuted, nil,
			"Escalated to human team: "+d.Reason); err != nil {
			return Outcome{}, err
		}
		if err := e.complaints.EscalateComplaint(ctx, complaintID, d.Reason); err != nil {
			return Outcome{}, fmt.Errorf("escalate complaint: %w", err)
		}
		return succeeded(d, "Escalated: "+d.Reason), nil

	default:
		return declined(d, fmt.Sprintf("Unknown action type: %s", d.Type())), nil
	}
}

func (e *Executor) record(ctx context.Context, complaintID string, actionType domain.ActionType, status domain.ActionStatus, amount *float64, description string) error {
	action := domain.ComplaintAction{
		ComplaintID:  complaintID,
		ActionType:   actionType,
		Status:       status,
		Amount:       amount,
		Description:  description,
		AuthorizedBy: domain.AuthorizedByAI,
	}
	if status == domain.ActionExecuted {
		now := e.now()
		action.ExecutedAt = &now
	}
	if _, err := e.complaints.CreateComplaintAction(ctx, action); err != nil {
		return fmt.Errorf("record %s action: %w", actionType, err)
	}
	return nil
}

func (e *Executor) observe(actionType domain.ActionType, success bool) {
	if e.observer != nil {
		e.observer.ActionExecuted(string(actionType), success)
	}
}

func compensationAmount(d Compensation) string {
	if isPercentKind(d.Kind) {
		return strconv.FormatFloat(d.Value, 'f', -1, 64) + "%"
	}
	return money(d.Value)
}

func succeeded(d Directive, description string) Outcome {
	return Outcome{Type: d.Type(), Success: true, Description: description}
}

func declined(d Directive, description string) Outcome {
	return Outcome{Type: d.Type(), Description: description}
}
