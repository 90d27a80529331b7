package domain

import "time"

type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

type SimulationStatus string

const (
	SimulationRunning   SimulationStatus = "RUNNING"
	SimulationCompleted SimulationStatus = "COMPLETED"
	SimulationFailed    SimulationStatus = "FAILED"
	SimulationTimeout   SimulationStatus = "TIMEOUT"
)

// SimulationRun groups the simulations of one batch and carries the
// run-level aggregates once the batch finishes.
type SimulationRun struct {
	ID              string
	Name            string
	Status          RunStatus
	PersonaSet      string
	ScenarioCount   int
	CompletedCount  int
	StartedAt       *time.Time
	CompletedAt     *time.Time
	AvgDuration     *float64
	AvgMessageCount *float64
	ResolutionRate  *float64
	EscalationRate  *float64
	AvgSatisfaction *float64
	AvgLatency      *float64
	CreatedAt       time.Time
}

type SimulationRecord struct {
	ID                  string
	RunID               string
	PersonaID           string
	PersonaName         string
	ScenarioType        string
	ScenarioDescription string
	Status              SimulationStatus
	ConversationID      string
	StartedAt           time.Time
	CompletedAt         *time.Time
	DurationSeconds     float64
	MessageCount        int
	UserMessageCount    int
	AssistantMsgCount   int
	WasResolved         bool
	WasEscalated        bool
	WasBlocked          bool
	EscalateReason      string
	ActionsTaken        []ActionType
	AvgResponseLatency  float64
	MaxResponseLatency  float64
	SimulatedCSAT       *int
	EvaluationNotes     string
	InjectionAttempts   int
	BlockedAttempts     int
	VulnerabilityFlags  int
	ErrorMessage        string
	CreatedAt           time.Time
}

type SimulationMessage struct {
	ID              string
	SimulationID    string
	Role            Role
	Content         string
	PersonaIntent   string
	EmotionLevel    *float64
	Intent          Intent
	Confidence      *float64
	ResponseLatency *int64
	ActionTaken     ActionType
	CreatedAt       time.Time
}
