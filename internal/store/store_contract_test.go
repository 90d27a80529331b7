package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"carsa.local/complaints/internal/domain"
)

func exerciseCustomerLookup(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := Seed(ctx, s, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// reseeding replaces in place
	if _, err := Seed(ctx, s, now); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	since := now.Add(-90 * day)
	byEmail, err := s.FindByEmail(ctx, "  James.Wilson@Email.com ", since)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.Name != "James Wilson" || len(byEmail.Orders) != 1 {
		t.Fatalf("unexpected customer: %+v", byEmail.Customer)
	}
	order := byEmail.PrimaryOrder()
	if order.OrderNumber != "ORD-2024-00001" || len(order.Accessories) != 2 || order.AccessoriesDelivered {
		t.Fatalf("unexpected primary order: %+v", order)
	}
	if order.DeliveryDate == nil {
		t.Fatalf("expected delivery date")
	}

	byOrder, err := s.FindByOrderNumber(ctx, "ord-2024-00002", since)
	if err != nil {
		t.Fatalf("find by order: %v", err)
	}
	if byOrder.Name != "Sarah Chen" {
		t.Fatalf("expected Sarah Chen, got %s", byOrder.Name)
	}

	byReg, err := s.FindByVehicleReg(ctx, "ab12   cde", since)
	if err != nil {
		t.Fatalf("find by reg: %v", err)
	}
	if byReg.Name != "Michael Brown" || byReg.PrimaryOrder().VehicleMake != "Audi" {
		t.Fatalf("unexpected reg match: %+v", byReg.Customer)
	}

	byID, err := s.FindByID(ctx, byReg.ID, since)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != "michael.brown@email.com" {
		t.Fatalf("unexpected id match: %s", byID.Email)
	}

	if _, err := s.FindByEmail(ctx, "nobody@example.com", since); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByVehicleReg(ctx, "ZZ99 ZZZ", since); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	old := domain.Complaint{
		CustomerID: byEmail.ID,
		Category:   domain.CategoryDelivery,
		Priority:   domain.PriorityNormal,
		CreatedAt:  now.Add(-120 * day),
	}
	if _, err := s.CreateComplaint(ctx, old); err != nil {
		t.Fatalf("create old complaint: %v", err)
	}
	recent := domain.Complaint{
		CustomerID: byEmail.ID,
		Category:   domain.CategoryMissingItems,
		Priority:   domain.PriorityNormal,
	}
	if _, err := s.CreateComplaint(ctx, recent); err != nil {
		t.Fatalf("create recent complaint: %v", err)
	}
	withComplaints, err := s.FindByEmail(ctx, "james.wilson@email.com", since)
	if err != nil {
		t.Fatalf("find with complaints: %v", err)
	}
	if withComplaints.PreviousComplaints != 1 {
		t.Fatalf("expected 1 complaint in window, got %d", withComplaints.PreviousComplaints)
	}
}

func exerciseConversations(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, domain.Conversation{
		ID:      "conv_1",
		Channel: domain.ChannelWebchat,
		Status:  domain.ConversationActive,
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.CreatedAt.IsZero() {
		t.Fatalf("expected created at to be set")
	}

	for i, content := range []string{"one", "two", "three"} {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if _, err := s.AppendMessage(ctx, domain.Message{ConversationID: "conv_1", Role: role, Content: content}); err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
	}
	if _, err := s.AppendMessage(ctx, domain.Message{ConversationID: "missing", Role: domain.RoleUser, Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing conversation, got %v", err)
	}

	recent, err := s.RecentMessages(ctx, "conv_1", 2)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "two" || recent[1].Content != "three" {
		t.Fatalf("unexpected recent messages: %+v", recent)
	}

	if err := s.SetConversationCustomer(ctx, "conv_1", "cust_1"); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	loaded, err := s.GetConversation(ctx, "conv_1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if loaded.CustomerID != "cust_1" {
		t.Fatalf("expected customer cust_1, got %q", loaded.CustomerID)
	}
	if _, err := s.GetConversation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func exerciseComplaints(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	complaint, err := s.CreateComplaint(ctx, domain.Complaint{
		CustomerID: "cust_1",
		Category:   domain.CategoryVehicleCondition,
		Priority:   domain.PriorityUrgent,
	})
	if err != nil {
		t.Fatalf("create complaint: %v", err)
	}
	if complaint.Status != domain.ComplaintOpen || complaint.ReferenceNumber == "" {
		t.Fatalf("unexpected complaint defaults: %+v", complaint)
	}

	amount := 25.0
	now := time.Now().UTC()
	if _, err := s.CreateComplaintAction(ctx, domain.ComplaintAction{
		ComplaintID:  complaint.ID,
		ActionType:   domain.ActionRefund,
		Status:       domain.ActionExecuted,
		Amount:       &amount,
		Description:  "Refund of £25 processed",
		AuthorizedBy: domain.AuthorizedByAI,
		ExecutedAt:   &now,
	}); err != nil {
		t.Fatalf("create action: %v", err)
	}
	if _, err := s.CreateComplaintAction(ctx, domain.ComplaintAction{ComplaintID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	actions, err := s.ListComplaintActions(ctx, complaint.ID)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 1 || actions[0].Amount == nil || *actions[0].Amount != 25 {
		t.Fatalf("unexpected actions: %+v", actions)
	}

	if err := s.EscalateComplaint(ctx, complaint.ID, "Legal language detected"); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	loaded, err := s.GetComplaint(ctx, complaint.ID)
	if err != nil {
		t.Fatalf("get complaint: %v", err)
	}
	if loaded.Status != domain.ComplaintEscalated || loaded.EscalatedReason != "Legal language detected" {
		t.Fatalf("unexpected escalated complaint: %+v", loaded)
	}
	if err := s.EscalateComplaint(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func exerciseSimulations(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var runIDs []string
	for i := 0; i < 3; i++ {
		run, err := s.CreateRun(ctx, domain.SimulationRun{Name: "run", PersonaSet: "standard", ScenarioCount: 2})
		if err != nil {
			t.Fatalf("create run: %v", err)
		}
		if run.Status != domain.RunPending {
			t.Fatalf("expected pending run, got %s", run.Status)
		}
		completed := base.Add(time.Duration(i) * time.Hour)
		run.Status = domain.RunCompleted
		run.CompletedAt = &completed
		if err := s.UpdateRun(ctx, run); err != nil {
			t.Fatalf("update run: %v", err)
		}
		runIDs = append(runIDs, run.ID)
	}
	if err := s.IncrementRunCompleted(ctx, runIDs[0]); err != nil {
		t.Fatalf("increment: %v", err)
	}
	first, err := s.GetRun(ctx, runIDs[0])
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if first.CompletedCount != 1 || first.Status != domain.RunCompleted {
		t.Fatalf("unexpected run: %+v", first)
	}

	newest, err := s.ListRuns(ctx, RunFilter{Status: domain.RunCompleted, Order: OrderCompletedDesc, Limit: 2})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(newest) != 2 || newest[0].ID != runIDs[2] || newest[1].ID != runIDs[1] {
		t.Fatalf("unexpected newest runs: %+v", newest)
	}
	since := base.Add(30 * time.Minute)
	trend, err := s.ListRuns(ctx, RunFilter{Status: domain.RunCompleted, CompletedSince: &since, Order: OrderCompletedAsc})
	if err != nil {
		t.Fatalf("list trend runs: %v", err)
	}
	if len(trend) != 2 || trend[0].ID != runIDs[1] {
		t.Fatalf("unexpected trend runs: %+v", trend)
	}

	csat := 4
	rec, err := s.CreateSimulation(ctx, domain.SimulationRecord{
		RunID:        runIDs[0],
		PersonaID:    "frustrated_first_timer",
		PersonaName:  "Frustrated First Timer",
		ScenarioType: "MISSING_ITEM",
	})
	if err != nil {
		t.Fatalf("create simulation: %v", err)
	}
	rec.Status = domain.SimulationCompleted
	rec.ActionsTaken = []domain.ActionType{domain.ActionReship, domain.ActionCompensation}
	rec.SimulatedCSAT = &csat
	rec.WasResolved = true
	if err := s.UpdateSimulation(ctx, rec); err != nil {
		t.Fatalf("update simulation: %v", err)
	}
	if _, err := s.CreateSimulation(ctx, domain.SimulationRecord{RunID: runIDs[0], PersonaID: "p2", Status: domain.SimulationFailed}); err != nil {
		t.Fatalf("create failed simulation: %v", err)
	}

	if _, err := s.AppendSimulationMessage(ctx, domain.SimulationMessage{SimulationID: rec.ID, Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append sim message: %v", err)
	}
	if _, err := s.AppendSimulationMessage(ctx, domain.SimulationMessage{SimulationID: rec.ID, Role: domain.RoleAssistant, Content: "hello"}); err != nil {
		t.Fatalf("append sim message: %v", err)
	}
	msgs, err := s.ListSimulationMessages(ctx, rec.ID)
	if err != nil {
		t.Fatalf("list sim messages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Fatalf("unexpected sim messages: %+v", msgs)
	}

	completed, err := s.ListSimulations(ctx, SimulationFilter{RunID: runIDs[0], Statuses: []domain.SimulationStatus{domain.SimulationCompleted}})
	if err != nil {
		t.Fatalf("list simulations: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed simulation, got %d", len(completed))
	}
	got := completed[0]
	if len(got.ActionsTaken) != 2 || got.ActionsTaken[0] != domain.ActionReship || got.SimulatedCSAT == nil || *got.SimulatedCSAT != 4 {
		t.Fatalf("unexpected simulation: %+v", got)
	}
	all, err := s.ListSimulations(ctx, SimulationFilter{})
	if err != nil {
		t.Fatalf("list all simulations: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 simulations, got %d", len(all))
	}
}
