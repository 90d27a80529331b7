package store

import (
	"encoding/json"
	"time"

	"carsa.local/complaints/internal/domain"
)

type customerRow struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Name         string    `gorm:"size:191;not null"`
	Email        string    `gorm:"size:191;uniqueIndex;not null"`
	Phone        string    `gorm:"size:64"`
	IsVulnerable bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (customerRow) TableName() string {
	return "customers"
}

func (r customerRow) toRecord(orders []orderRow) domain.Customer {
	out := domain.Customer{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		IsVulnerable: r.IsVulnerable,
		CreatedAt:    r.CreatedAt,
		Orders:       make([]domain.Order, 0, len(orders)),
	}
	for _, order := range orders {
		out.Orders = append(out.Orders, order.toRecord())
	}
	return out
}

type orderRow struct {
	ID                   string     `gorm:"primaryKey;size:64"`
	CustomerID           string     `gorm:"size:64;index;not null"`
	OrderNumber          string     `gorm:"size:64;uniqueIndex;not null"`
	VehicleReg           string     `gorm:"size:32;index;not null"`
	VehicleMake          string     `gorm:"size:128"`
	VehicleModel         string     `gorm:"size:128"`
	VehicleYear          int        `gorm:"not null"`
	PurchaseDate         time.Time  `gorm:"not null"`
	PurchasePrice        float64    `gorm:"not null"`
	DeliveryStatus       string     `gorm:"size:32;not null"`
	DeliveryDate         *time.Time `gorm:""`
	DeliveryAddress      string     `gorm:"type:text"`
	WarrantyType         string     `gorm:"size:32;not null"`
	WarrantyExpiry       time.Time  `gorm:"not null"`
	AccessoriesJSON      string     `gorm:"type:text"`
	AccessoriesDelivered bool       `gorm:"not null;default:false"`
}

func (orderRow) TableName() string {
	return "orders"
}

func (r orderRow) toRecord() domain.Order {
	return domain.Order{
		ID:                   r.ID,
		CustomerID:           r.CustomerID,
		OrderNumber:          r.OrderNumber,
		VehicleReg:           r.VehicleReg,
		VehicleMake:          r.VehicleMake,
		VehicleModel:         r.VehicleModel,
		VehicleYear:          r.VehicleYear,
		PurchaseDate:         r.PurchaseDate,
		PurchasePrice:        r.PurchasePrice,
		DeliveryStatus:       domain.DeliveryStatus(r.DeliveryStatus),
		DeliveryDate:         r.DeliveryDate,
		DeliveryAddress:      r.DeliveryAddress,
		WarrantyType:         domain.WarrantyType(r.WarrantyType),
		WarrantyExpiry:       r.WarrantyExpiry,
		Accessories:          decodeStrings(r.AccessoriesJSON),
		AccessoriesDelivered: r.AccessoriesDelivered,
	}
}

func orderRowFromRecord(order domain.Order) orderRow {
	return orderRow{
		ID:                   order.ID,
		CustomerID:           order.CustomerID,
		OrderNumber:          normalizeOrderNumber(order.OrderNumber),
		VehicleReg:           NormalizeReg(order.VehicleReg),
		VehicleMake:          order.VehicleMake,
		VehicleModel:         order.VehicleModel,
		VehicleYear:          order.VehicleYear,
		PurchaseDate:         order.PurchaseDate,
		PurchasePrice:        order.PurchasePrice,
		DeliveryStatus:       string(order.DeliveryStatus),
		DeliveryDate:         order.DeliveryDate,
		DeliveryAddress:      order.DeliveryAddress,
		WarrantyType:         string(order.WarrantyType),
		WarrantyExpiry:       order.WarrantyExpiry,
		AccessoriesJSON:      encodeStrings(order.Accessories),
		AccessoriesDelivered: order.AccessoriesDelivered,
	}
}

type conversationRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	CustomerID string    `gorm:"size:64;index"`
	Channel    string    `gorm:"size:32;not null"`
	Status     string    `gorm:"size:32;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (conversationRow) TableName() string {
	return "conversations"
}

func (r conversationRow) toRecord() domain.Conversation {
	return domain.Conversation{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		Channel:    r.Channel,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type messageRow struct {
	ID             string    `gorm:"primaryKey;size:64"`
	ConversationID string    `gorm:"size:64;index:idx_messages_conversation_seq,priority:1;not null"`
	Sequence       int64     `gorm:"not null;index:idx_messages_conversation_seq,priority:2"`
	Role           string    `gorm:"size:16;not null"`
	Content        string    `gorm:"type:text;not null"`
	Intent         string    `gorm:"size:32"`
	Confidence     *float64  `gorm:""`
	Sentiment      *float64  `gorm:""`
	LatencyMS      *int64    `gorm:""`
	ActionTaken    string    `gorm:"size:32"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (messageRow) TableName() string {
	return "messages"
}

func (r messageRow) toRecord() domain.Message {
	return domain.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           domain.Role(r.Role),
		Content:        r.Content,
		Intent:         domain.Intent(r.Intent),
		Confidence:     r.Confidence,
		Sentiment:      r.Sentiment,
		LatencyMS:      r.LatencyMS,
		ActionTaken:    domain.ActionType(r.ActionTaken),
		CreatedAt:      r.CreatedAt,
	}
}

type complaintRow struct {
	ID              string    `gorm:"primaryKey;size:64"`
	ReferenceNumber string    `gorm:"size:32;uniqueIndex;not null"`
	CustomerID      string    `gorm:"size:64;index:idx_complaints_customer_created,priority:1;not null"`
	OrderID         string    `gorm:"size:64"`
	Category        string    `gorm:"size:32;not null"`
	Priority        string    `gorm:"size:16;not null"`
	Status          string    `gorm:"size:32;not null"`
	EscalatedReason string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null;index:idx_complaints_customer_created,priority:2"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (complaintRow) TableName() string {
	return "complaints"
}

func (r complaintRow) toRecord() domain.Complaint {
	return domain.Complaint{
		ID:              r.ID,
		ReferenceNumber: r.ReferenceNumber,
		CustomerID:      r.CustomerID,
		OrderID:         r.OrderID,
		Category:        domain.ComplaintCategory(r.Category),
		Priority:        domain.Priority(r.Priority),
		Status:          domain.ComplaintStatus(r.Status),
		EscalatedReason: r.EscalatedReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type complaintActionRow struct {
	ID           string     `gorm:"primaryKey;size:64"`
	ComplaintID  string     `gorm:"size:64;index;not null"`
	ActionType   string     `gorm:"size:32;not null"`
	Status       string     `gorm:"size:16;not null"`
	Amount       *float64   `gorm:""`
	Description  string     `gorm:"type:text"`
	AuthorizedBy string     `gorm:"size:64"`
	ExecutedAt   *time.Time `gorm:""`
	CreatedAt    time.Time  `gorm:"not null"`
}

func (complaintActionRow) TableName() string {
	return "complaint_actions"
}

func (r complaintActionRow) toRecord() domain.ComplaintAction {
	return domain.ComplaintAction{
		ID:           r.ID,
		ComplaintID:  r.ComplaintID,
		ActionType:   domain.ActionType(r.ActionType),
		Status:       domain.ActionStatus(r.Status),
		Amount:       r.Amount,
		Description:  r.Description,
		AuthorizedBy: r.AuthorizedBy,
		ExecutedAt:   r.ExecutedAt,
		CreatedAt:    r.CreatedAt,
	}
}

type simulationRunRow struct {
	ID              string     `gorm:"primaryKey;size:64"`
	Name            string     `gorm:"size:191"`
	Status          string     `gorm:"size:16;index;not null"`
	PersonaSet      string     `gorm:"size:32"`
	ScenarioCount   int        `gorm:"not null"`
	CompletedCount  int        `gorm:"not null"`
	StartedAt       *time.Time `gorm:""`
	CompletedAt     *time.Time `gorm:"index"`
	AvgDuration     *float64   `gorm:""`
	AvgMessageCount *float64   `gorm:""`
	ResolutionRate  *float64   `gorm:""`
	EscalationRate  *float64   `gorm:""`
	AvgSatisfaction *float64   `gorm:""`
	AvgLatency      *float64   `gorm:""`
	CreatedAt       time.Time  `gorm:"not null"`
}

func (simulationRunRow) TableName() string {
	return "simulation_runs"
}

func (r simulationRunRow) toRecord() domain.SimulationRun {
	return domain.SimulationRun{
		ID:              r.ID,
		Name:            r.Name,
		Status:          domain.RunStatus(r.Status),
		PersonaSet:      r.PersonaSet,
		ScenarioCount:   r.ScenarioCount,
		CompletedCount:  r.CompletedCount,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		AvgDuration:     r.AvgDuration,
		AvgMessageCount: r.AvgMessageCount,
		ResolutionRate:  r.ResolutionRate,
		EscalationRate:  r.EscalationRate,
		AvgSatisfaction: r.AvgSatisfaction,
		AvgLatency:      r.AvgLatency,
		CreatedAt:       r.CreatedAt,
	}
}

func simulationRunRowFromRecord(run domain.SimulationRun) simulationRunRow {
	return simulationRunRow{
		ID:              run.ID,
		Name:            run.Name,
		Status:          string(run.Status),
		PersonaSet:      run.PersonaSet,
		ScenarioCount:   run.ScenarioCount,
		CompletedCount:  run.CompletedCount,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		AvgDuration:     run.AvgDuration,
		AvgMessageCount: run.AvgMessageCount,
		ResolutionRate:  run.ResolutionRate,
		EscalationRate:  run.EscalationRate,
		AvgSatisfaction: run.AvgSatisfaction,
		AvgLatency:      run.AvgLatency,
		CreatedAt:       run.CreatedAt,
	}
}

type simulationRow struct {
	ID                  string     `gorm:"primaryKey;size:64"`
	RunID               string     `gorm:"size:64;index"`
	PersonaID           string     `gorm:"size:64;index;not null"`
	PersonaName         string     `gorm:"size:191"`
	ScenarioType        string     `gorm:"size:64;index"`
	ScenarioDescription string     `gorm:"type:text"`
	Status              string     `gorm:"size:16;index;not null"`
	ConversationID      string     `gorm:"size:64"`
	StartedAt           time.Time  `gorm:"not null"`
	CompletedAt         *time.Time `gorm:""`
	DurationSeconds     float64    `gorm:"not null"`
	MessageCount        int        `gorm:"not null"`
	UserMessageCount    int        `gorm:"not null"`
	AssistantMsgCount   int        `gorm:"not null"`
	WasResolved         bool       `gorm:"not null"`
	WasEscalated        bool       `gorm:"not null"`
	WasBlocked          bool       `gorm:"not null"`
	EscalateReason      string     `gorm:"type:text"`
	ActionsTakenJSON    string     `gorm:"type:text"`
	AvgResponseLatency  float64    `gorm:"not null"`
	MaxResponseLatency  float64    `gorm:"not null"`
	SimulatedCSAT       *int       `gorm:"column:simulated_csat"`
	EvaluationNotes     string     `gorm:"type:text"`
	InjectionAttempts   int        `gorm:"not null"`
	BlockedAttempts     int        `gorm:"not null"`
	VulnerabilityFlags  int        `gorm:"not null"`
	ErrorMessage        string     `gorm:"type:text"`
	CreatedAt           time.Time  `gorm:"not null"`
}

func (simulationRow) TableName() string {
	return "simulations"
}

func (r simulationRow) toRecord() domain.SimulationRecord {
	actions := decodeStrings(r.ActionsTakenJSON)
	rec := domain.SimulationRecord{
		ID:                  r.ID,
		RunID:               r.RunID,
		PersonaID:           r.PersonaID,
		PersonaName:         r.PersonaName,
		ScenarioType:        r.ScenarioType,
		ScenarioDescription: r.ScenarioDescription,
		Status:              domain.SimulationStatus(r.Status),
		ConversationID:      r.ConversationID,
		StartedAt:           r.StartedAt,
		CompletedAt:         r.CompletedAt,
		DurationSeconds:     r.DurationSeconds,
		MessageCount:        r.MessageCount,
		UserMessageCount:    r.UserMessageCount,
		AssistantMsgCount:   r.AssistantMsgCount,
		WasResolved:         r.WasResolved,
		WasEscalated:        r.WasEscalated,
		WasBlocked:          r.WasBlocked,
		EscalateReason:      r.EscalateReason,
		ActionsTaken:        make([]domain.ActionType, 0, len(actions)),
		AvgResponseLatency:  r.AvgResponseLatency,
		MaxResponseLatency:  r.MaxResponseLatency,
		SimulatedCSAT:       r.SimulatedCSAT,
		EvaluationNotes:     r.EvaluationNotes,
		InjectionAttempts:   r.InjectionAttempts,
		BlockedAttempts:     r.BlockedAttempts,
		VulnerabilityFlags:  r.VulnerabilityFlags,
		ErrorMessage:        r.ErrorMessage,
		CreatedAt:           r.CreatedAt,
	}
	for _, action := range actions {
		rec.ActionsTaken = append(rec.ActionsTaken, domain.ActionType(action))
	}
	return rec
}

func simulationRowFromRecord(rec domain.SimulationRecord) simulationRow {
	actions := make([]string, 0, len(rec.ActionsTaken))
	for _, action := range rec.ActionsTaken {
		actions = append(actions, string(action))
	}
	return simulationRow{
		ID:                  rec.ID,
		RunID:               rec.RunID,
		PersonaID:           rec.PersonaID,
		PersonaName:         rec.PersonaName,
		ScenarioType:        rec.ScenarioType,
		ScenarioDescription: rec.ScenarioDescription,
		Status:              string(rec.Status),
		ConversationID:      rec.ConversationID,
		StartedAt:           rec.StartedAt,
		CompletedAt:         rec.CompletedAt,
		DurationSeconds:     rec.DurationSeconds,
		MessageCount:        rec.MessageCount,
		UserMessageCount:    rec.UserMessageCount,
		AssistantMsgCount:   rec.AssistantMsgCount,
		WasResolved:         rec.WasResolved,
		WasEscalated:        rec.WasEscalated,
		WasBlocked:          rec.WasBlocked,
		EscalateReason:      rec.EscalateReason,
		ActionsTakenJSON:    encodeStrings(actions),
		AvgResponseLatency:  rec.AvgResponseLatency,
		MaxResponseLatency:  rec.MaxResponseLatency,
		SimulatedCSAT:       rec.SimulatedCSAT,
		EvaluationNotes:     rec.EvaluationNotes,
		InjectionAttempts:   rec.InjectionAttempts,
		BlockedAttempts:     rec.BlockedAttempts,
		VulnerabilityFlags:  rec.VulnerabilityFlags,
		ErrorMessage:        rec.ErrorMessage,
		CreatedAt:           rec.CreatedAt,
	}
}

type simulationMessageRow struct {
	ID              string    `gorm:"primaryKey;size:64"`
	SimulationID    string    `gorm:"size:64;index:idx_sim_messages_sim_seq,priority:1;not null"`
	Sequence        int64     `gorm:"not null;index:idx_sim_messages_sim_seq,priority:2"`
	Role            string    `gorm:"size:16;not null"`
	Content         string    `gorm:"type:text;not null"`
	PersonaIntent   string    `gorm:"size:64"`
	EmotionLevel    *float64  `gorm:""`
	Intent          string    `gorm:"size:32"`
	Confidence      *float64  `gorm:""`
	ResponseLatency *int64    `gorm:""`
	ActionTaken     string    `gorm:"size:32"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (simulationMessageRow) TableName() string {
	return "simulation_messages"
}

func (r simulationMessageRow) toRecord() domain.SimulationMessage {
	return domain.SimulationMessage{
		ID:              r.ID,
		SimulationID:    r.SimulationID,
		Role:            domain.Role(r.Role),
		Content:         r.Content,
		PersonaIntent:   r.PersonaIntent,
		EmotionLevel:    r.EmotionLevel,
		Intent:          domain.Intent(r.Intent),
		Confidence:      r.Confidence,
		ResponseLatency: r.ResponseLatency,
		ActionTaken:     domain.ActionType(r.ActionTaken),
		CreatedAt:       r.CreatedAt,
	}
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}
