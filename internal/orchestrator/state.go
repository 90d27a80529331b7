package orchestrator

// State is a step of the per-turn pipeline.
type State string

const (
	StateReceived       State = "RECEIVED"
	StateGuardrailed    State = "GUARDRAILED"
	StateBlocked        State = "BLOCKED"
	StateEscalated      State = "ESCALATED"
	StateVulnerable     State = "VULNERABLE"
	StateClassified     State = "CLASSIFIED"
	StateContextualized State = "CONTEXTUALIZED"
	StateGenerated      State = "GENERATED"
	StateActionExecuted State = "ACTION_EXECUTED"
	StateReplied        State = "REPLIED"
)

// Outcome labels the path a turn took.
type Outcome string

const (
	OutcomeBlocked    Outcome = "blocked"
	OutcomeEscalated  Outcome = "escalated"
	OutcomeVulnerable Outcome = "vulnerable"
	OutcomeGenerated  Outcome = "generated"
	OutcomeFallback   Outcome = "fallback"
)
