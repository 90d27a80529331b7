package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/ids"
)

type MemoryStore struct {
	mu            sync.Mutex
	customers     map[string]domain.Customer
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
	complaints    map[string]domain.Complaint
	actions       map[string][]domain.ComplaintAction
	runs          map[string]domain.SimulationRun
	simulations   map[string]domain.SimulationRecord
	simMessages   map[string][]domain.SimulationMessage
	closed        bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:     make(map[string]domain.Customer),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		complaints:    make(map[string]domain.Complaint),
		actions:       make(map[string][]domain.ComplaintAction),
		runs:          make(map[string]domain.SimulationRun),
		simulations:   make(map[string]domain.SimulationRecord),
		simMessages:   make(map[string][]domain.SimulationMessage),
	}
}

func (s *MemoryStore) errClosed() error {
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	return nil
}

func (s *MemoryStore) SaveCustomer(_ context.Context, customer domain.Customer) error {
	if strings.TrimSpace(customer.ID) == "" {
		return fmt.Errorf("customer id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return err
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.Orders = cloneOrders(customer.Orders, customer.ID)
	s.customers[customer.ID] = customer
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string, since time.Time) (domain.CustomerContext, error) {
	email = normalizeEmail(email)
	return s.find(since, func(c domain.Customer) (bool, int) {
		return normalizeEmail(c.Email) == email, -1
	})
}

func (s *MemoryStore) FindByOrderNumber(_ context.Context, orderNumber string, since time.Time) (domain.CustomerContext, error) {
	orderNumber = normalizeOrderNumber(orderNumber)
	return s.find(since, func(c domain.Customer) (bool, int) {
		for i, order := range c.Orders {
			if normalizeOrderNumber(order.OrderNumber) == orderNumber {
				return true, i
			}
		}
		return false, -1
	})
}

func (s *MemoryStore) FindByVehicleReg(_ context.Context, reg string, since time.Time) (domain.CustomerContext, error) {
	reg = NormalizeReg(reg)
	return s.find(since, func(c domain.Customer) (bool, int) {
		for i, order := range c.Orders {
			if NormalizeReg(order.VehicleReg) == reg {
				return true, i
			}
		}
		return false, -1
	})
}

func (s *MemoryStore) FindByID(_ context.Context, customerID string, since time.Time) (domain.CustomerContext, error) {
	return s.find(since, func(c domain.Customer) (bool, int) {
		return c.ID == customerID, -1
	})
}

// find scans customers with match, which reports whether a customer matches
// and the index of the order that matched (or -1).
func (s *MemoryStore) find(since time.Time, match func(domain.Customer) (bool, int)) (domain.CustomerContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.CustomerContext{}, err
	}

	for _, customer := range s.customers {
		ok, matched := match(customer)
		if !ok {
			continue
		}
		customer.Orders = orderedOrders(customer.Orders, matched)
		count := 0
		for _, complaint := range s.complaints {
			if complaint.CustomerID == customer.ID && !complaint.CreatedAt.Before(since) {
				count++
			}
		}
		return domain.CustomerContext{Customer: customer, PreviousComplaints: count}, nil
	}
	return domain.CustomerContext{}, ErrNotFound
}

func (s *MemoryStore) CreateConversation(_ context.Context, conv domain.Conversation) (domain.Conversation, error) {
	if conv.ID == "" {
		conv.ID = ids.New()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.Conversation{}, err
	}
	if _, exists := s.conversations[conv.ID]; exists {
		return domain.Conversation{}, fmt.Errorf("conversation %s already exists", conv.ID)
	}
	s.conversations[conv.ID] = conv
	return conv, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.Conversation{}, err
	}
	conv, ok := s.conversations[id]
	if !ok {
		return domain.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (s *MemoryStore) SetConversationCustomer(_ context.Context, id, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return err
	}
	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.CustomerID = customerID
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[id] = conv
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	if err := validateMessage(msg); err != nil {
		return domain.Message{}, err
	}
	if msg.ID == "" {
		msg.ID = ids.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.Message{}, err
	}
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return domain.Message{}, ErrNotFound
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return msg, nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return nil, err
	}
	msgs := s.messages[conversationID]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) CreateComplaint(_ context.Context, complaint domain.Complaint) (domain.Complaint, error) {
	if strings.TrimSpace(complaint.CustomerID) == "" {
		return domain.Complaint{}, fmt.Errorf("complaint customer id is required")
	}
	now := time.Now().UTC()
	if complaint.ID == "" {
		complaint.ID = ids.New()
	}
	if complaint.ReferenceNumber == "" {
		complaint.ReferenceNumber = ids.ComplaintReference(now)
	}
	if complaint.Status == "" {
		complaint.Status = domain.ComplaintOpen
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.Complaint{}, err
	}
	s.complaints[complaint.ID] = complaint
	return complaint, nil
}

func (s *MemoryStore) GetComplaint(_ context.Context, id string) (domain.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.Complaint{}, err
	}
	complaint, ok := s.complaints[id]
	if !ok {
		return domain.Complaint{}, ErrNotFound
	}
	return complaint, nil
}

func (s *MemoryStore) EscalateComplaint(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return err
	}
	complaint, ok := s.complaints[id]
	if !ok {
		return ErrNotFound
	}
	complaint.Status = domain.ComplaintEscalated
	complaint.EscalatedReason = reason
	complaint.UpdatedAt = time.Now().UTC()
	s.complaints[id] = complaint
	return nil
}

func (s *MemoryStore) CreateComplaintAction(_ context.Context, action domain.ComplaintAction) (domain.ComplaintAction, error) {
	if action.ID == "" {
		action.ID = ids.New()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.ComplaintAction{}, err
	}
	if _, ok := s.complaints[action.ComplaintID]; !ok {
		return domain.ComplaintAction{}, ErrNotFound
	}
	s.actions[action.ComplaintID] = append(s.actions[action.ComplaintID], action)
	return action, nil
}

func (s *MemoryStore) ListComplaintActions(_ context.Context, complaintID string) ([]domain.ComplaintAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return nil, err
	}
	out := make([]domain.ComplaintAction, len(s.actions[complaintID]))
	copy(out, s.actions[complaintID])
	return out, nil
}

func (s *MemoryStore) CreateRun(_ context.Context, run domain.SimulationRun) (domain.SimulationRun, error) {
	if run.ID == "" {
		run.ID = ids.New()
	}
	if run.Status == "" {
		run.Status = domain.RunPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.SimulationRun{}, err
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *MemoryStore) UpdateRun(_ context.Context, run domain.SimulationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return err
	}
	existing, ok := s.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	run.CreatedAt = existing.CreatedAt
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (domain.SimulationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.SimulationRun{}, err
	}
	run, ok := s.runs[id]
	if !ok {
		return domain.SimulationRun{}, ErrNotFound
	}
	return run, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]domain.SimulationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return nil, err
	}
	out := make([]domain.SimulationRun, 0, len(s.runs))
	for _, run := range s.runs {
		if matchesRun(run, filter) {
			out = append(out, run)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return runLess(out[i], out[j], filter.Order) })
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) IncrementRunCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return err
	}
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.CompletedCount++
	s.runs[id] = run
	return nil
}

func (s *MemoryStore) CreateSimulation(_ context.Context, rec domain.SimulationRecord) (domain.SimulationRecord, error) {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	if rec.Status == "" {
		rec.Status = domain.SimulationRunning
	}
	rec.ActionsTaken = append([]domain.ActionType(nil), rec.ActionsTaken...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.SimulationRecord{}, err
	}
	s.simulations[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) UpdateSimulation(_ context.Context, rec domain.SimulationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return err
	}
	existing, ok := s.simulations[rec.ID]
	if !ok {
		return ErrNotFound
	}
	rec.CreatedAt = existing.CreatedAt
	rec.ActionsTaken = append([]domain.ActionType(nil), rec.ActionsTaken...)
	s.simulations[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetSimulation(_ context.Context, id string) (domain.SimulationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.SimulationRecord{}, err
	}
	rec, ok := s.simulations[id]
	if !ok {
		return domain.SimulationRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListSimulations(_ context.Context, filter SimulationFilter) ([]domain.SimulationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return nil, err
	}
	out := make([]domain.SimulationRecord, 0, len(s.simulations))
	for _, rec := range s.simulations {
		if matchesSimulation(rec, filter) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendSimulationMessage(_ context.Context, msg domain.SimulationMessage) (domain.SimulationMessage, error) {
	if msg.ID == "" {
		msg.ID = ids.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return domain.SimulationMessage{}, err
	}
	if _, ok := s.simulations[msg.SimulationID]; !ok {
		return domain.SimulationMessage{}, ErrNotFound
	}
	s.simMessages[msg.SimulationID] = append(s.simMessages[msg.SimulationID], msg)
	return msg, nil
}

func (s *MemoryStore) ListSimulationMessages(_ context.Context, simulationID string) ([]domain.SimulationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errClosed(); err != nil {
		return nil, err
	}
	out := make([]domain.SimulationMessage, len(s.simMessages[simulationID]))
	copy(out, s.simMessages[simulationID])
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneOrders(orders []domain.Order, customerID string) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, order := range orders {
		if order.ID == "" {
			order.ID = ids.New()
		}
		order.CustomerID = customerID
		order.Accessories = append([]string(nil), order.Accessories...)
		out[i] = order
	}
	return out
}

// orderedOrders returns the orders newest purchase first, with the matched
// order (if any) moved to the front.
func orderedOrders(orders []domain.Order, matched int) []domain.Order {
	var first *domain.Order
	if matched >= 0 && matched < len(orders) {
		o := orders[matched]
		first = &o
	}
	out := make([]domain.Order, 0, len(orders))
	for i, order := range orders {
		if i == matched {
			continue
		}
		order.Accessories = append([]string(nil), order.Accessories...)
		out = append(out, order)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchaseDate.After(out[j].PurchaseDate) })
	if first != nil {
		first.Accessories = append([]string(nil), first.Accessories...)
		out = append([]domain.Order{*first}, out...)
	}
	return out
}
