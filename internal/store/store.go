package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carsa.local/complaints/internal/domain"
)

var ErrNotFound = errors.New("not found")

// CustomerLookup resolves a customer identity with its orders. The complaint
// count on the returned context covers complaints created at or after since.
type CustomerLookup interface {
	FindByEmail(ctx context.Context, email string, since time.Time) (domain.CustomerContext, error)
	FindByOrderNumber(ctx context.Context, orderNumber string, since time.Time) (domain.CustomerContext, error)
	FindByVehicleReg(ctx context.Context, reg string, since time.Time) (domain.CustomerContext, error)
	FindByID(ctx context.Context, customerID string, since time.Time) (domain.CustomerContext, error)
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, conv domain.Conversation) (domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	SetConversationCustomer(ctx context.Context, id, customerID string) error
	AppendMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	// RecentMessages returns up to limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

type ComplaintStore interface {
	CreateComplaint(ctx context.Context, complaint domain.Complaint) (domain.Complaint, error)
	GetComplaint(ctx context.Context, id string) (domain.Complaint, error)
	EscalateComplaint(ctx context.Context, id, reason string) error
	CreateComplaintAction(ctx context.Context, action domain.ComplaintAction) (domain.ComplaintAction, error)
	ListComplaintActions(ctx context.Context, complaintID string) ([]domain.ComplaintAction, error)
}

type RunOrder int

const (
	OrderCreatedAsc RunOrder = iota
	OrderCompletedAsc
	OrderCompletedDesc
)

// RunFilter selects simulation runs. Zero values match everything.
type RunFilter struct {
	Status         domain.RunStatus
	CompletedSince *time.Time
	Order          RunOrder
	Limit          int
}

// SimulationFilter selects simulation records. Zero values match everything.
type SimulationFilter struct {
	RunID    string
	Statuses []domain.SimulationStatus
}

type SimulationStore interface {
	CreateRun(ctx context.Context, run domain.SimulationRun) (domain.SimulationRun, error)
	UpdateRun(ctx context.Context, run domain.SimulationRun) error
	GetRun(ctx context.Context, id string) (domain.SimulationRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.SimulationRun, error)
	IncrementRunCompleted(ctx context.Context, id string) error
	CreateSimulation(ctx context.Context, rec domain.SimulationRecord) (domain.SimulationRecord, error)
	UpdateSimulation(ctx context.Context, rec domain.SimulationRecord) error
	GetSimulation(ctx context.Context, id string) (domain.SimulationRecord, error)
	ListSimulations(ctx context.Context, filter SimulationFilter) ([]domain.SimulationRecord, error)
	AppendSimulationMessage(ctx context.Context, msg domain.SimulationMessage) (domain.SimulationMessage, error)
	ListSimulationMessages(ctx context.Context, simulationID string) ([]domain.SimulationMessage, error)
}

type Store interface {
	CustomerLookup
	ConversationStore
	ComplaintStore
	SimulationStore
	// SaveCustomer inserts or replaces a customer together with its orders.
	SaveCustomer(ctx context.Context, customer domain.Customer) error
	Close() error
}

// NormalizeReg uppercases a registration and collapses internal whitespace to
// single spaces.
func NormalizeReg(reg string) string {
	return strings.Join(strings.Fields(strings.ToUpper(reg)), " ")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeOrderNumber(orderNumber string) string {
	return strings.ToUpper(strings.TrimSpace(orderNumber))
}

func validateMessage(msg domain.Message) error {
	if strings.TrimSpace(msg.ConversationID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if msg.Role == "" {
		return fmt.Errorf("message role is required")
	}
	return nil
}

func matchesSimulation(rec domain.SimulationRecord, filter SimulationFilter) bool {
	if filter.RunID != "" && rec.RunID != filter.RunID {
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, status := range filter.Statuses {
		if rec.Status == status {
			return true
		}
	}
	return false
}

func runLess(a, b domain.SimulationRun, order RunOrder) bool {
	switch order {
	case OrderCompletedAsc:
		return timeOrZero(a.CompletedAt).Before(timeOrZero(b.CompletedAt))
	case OrderCompletedDesc:
		return timeOrZero(a.CompletedAt).After(timeOrZero(b.CompletedAt))
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func matchesRun(run domain.SimulationRun, filter RunFilter) bool {
	if filter.Status != "" && run.Status != filter.Status {
		return false
	}
	if filter.CompletedSince != nil {
		if run.CompletedAt == nil || run.CompletedAt.Before(*filter.CompletedSince) {
			return false
		}
	}
	return true
}
