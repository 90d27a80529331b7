package simulation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/dispatch"
	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/events"
	"carsa.local/complaints/internal/logging"
	"carsa.local/complaints/internal/model"
	"carsa.local/complaints/internal/orchestrator"
	"carsa.local/complaints/internal/store"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultParallelism = 1
	injectionProbeLen  = 20
)

var ErrTimeout = errors.New("simulation timeout")

// Conversations is the engine under test.
type Conversations interface {
	HandleMessage(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

type Observer interface {
	SimulationFinished(status string, seconds float64)
}

// BatchConfig describes one batch run. Zero values take the controller's
// defaults.
type BatchConfig struct {
	Set         Set
	Parallelism int
	Timeout     time.Duration
}

// Result summarises one simulated conversation.
type Result struct {
	SimulationID       string
	PersonaID          string
	ScenarioID         string
	Status             domain.SimulationStatus
	ConversationID     string
	DurationSeconds    float64
	MessageCount       int
	AvgResponseLatency float64
	MaxResponseLatency float64
	WasResolved        bool
	WasEscalated       bool
	WasBlocked         bool
	EscalateReason     string
	ActionsTaken       []domain.ActionType
	SimulatedCSAT      *int
	EvaluationNotes    string
	Match              ResolutionMatch
	InjectionAttempts  int
	BlockedAttempts    int
	VulnerabilityFlags int
	Error              string
}

type Controller struct {
	store       store.SimulationStore
	engine      Conversations
	simulator   *CustomerSimulator
	evaluator   *Evaluator
	scenarios   *ScenarioGenerator
	dispatcher  *dispatch.Dispatcher
	observer    Observer
	log         logrus.FieldLogger
	now         func() time.Time
	timeout     time.Duration
	parallelism int
}

type ControllerOption func(*Controller)

func WithLogger(log logrus.FieldLogger) ControllerOption {
	return func(c *Controller) { c.log = logging.OrDiscard(log) }
}

func WithDispatcher(dispatcher *dispatch.Dispatcher) ControllerOption {
	return func(c *Controller) { c.dispatcher = dispatcher }
}

func WithObserver(observer Observer) ControllerOption {
	return func(c *Controller) { c.observer = observer }
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithTimeout(timeout time.Duration) ControllerOption {
	return func(c *Controller) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithParallelism(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

func WithScenarioGenerator(g *ScenarioGenerator) ControllerOption {
	return func(c *Controller) {
		if g != nil {
			c.scenarios = g
		}
	}
}

// NewController wires a controller. generator drives both the customer
// simulator and the evaluator.
func NewController(st store.SimulationStore, engine Conversations, generator model.Generator, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:       st,
		engine:      engine,
		scenarios:   NewScenarioGenerator(),
		log:         logging.Discard(),
		now:         time.Now,
		timeout:     DefaultTimeout,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.simulator = NewCustomerSimulator(generator, c.log)
	c.evaluator = NewEvaluator(generator, c.log)
	return c
}

// CreateRun records a PENDING run sized to the persona set.
func (c *Controller) CreateRun(ctx context.Context, name string, set Set) (domain.SimulationRun, error) {
	run, err := c.store.CreateRun(ctx, domain.SimulationRun{
		Name:          name,
		Status:        domain.RunPending,
		PersonaSet:    string(set),
		ScenarioCount: PersonaCount(set),
		CreatedAt:     c.now().UTC(),
	})
	if err != nil {
		return domain.SimulationRun{}, fmt.Errorf("create simulation run: %w", err)
	}
	return run, nil
}

// RunBatch runs every persona of cfg.Set against the engine, at most
// cfg.Parallelism at a time, then stores the run aggregates. Results keep
// persona order. Each simulation gets its own conversation.
func (c *Controller) RunBatch(ctx context.Context, runID string, cfg BatchConfig) ([]Result, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load simulation run %s: %w", runID, err)
	}
	set := cfg.Set
	if set == "" {
		set = Set(run.PersonaSet)
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = c.parallelism
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	started := c.now().UTC()
	run.Status = domain.RunRunning
	run.StartedAt = &started
	if err := c.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("start simulation run %s: %w", runID, err)
	}
	log := c.log.WithFields(logrus.Fields{"run_id": runID, "set": set, "parallelism": parallelism})
	log.Info("simulation run started")

	personas := Personas(set)
	results := make([]*Result, len(personas))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, persona := range personas {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		scenario := c.scenarios.Generate(persona)
		wg.Add(1)
		go func(i int, persona Persona, scenario Scenario) {
			defer wg.Done()
			defer func() { <-sem }()
			result, err := c.RunSingle(ctx, runID, persona, scenario, timeout)
			if err != nil {
				log.WithError(err).WithField("persona", persona.ID).Error("simulation could not be recorded")
				return
			}
			if err := c.store.IncrementRunCompleted(context.WithoutCancel(ctx), runID); err != nil {
				log.WithError(err).Warn("simulation run progress update failed")
			}
			results[i] = &result
		}(i, persona, scenario)
	}
	wg.Wait()

	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	// re-read so the completed count written by workers is kept
	final, err := c.store.GetRun(context.WithoutCancel(ctx), runID)
	if err != nil {
		return out, fmt.Errorf("reload simulation run %s: %w", runID, err)
	}
	applyAggregates(&final, out)
	completed := c.now().UTC()
	final.CompletedAt = &completed
	final.Status = domain.RunCompleted
	if ctx.Err() != nil {
		final.Status = domain.RunFailed
	}
	if err := c.store.UpdateRun(context.WithoutCancel(ctx), final); err != nil {
		return out, fmt.Errorf("finish simulation run %s: %w", runID, err)
	}
	log.WithFields(logrus.Fields{
		"status":    final.Status,
		"completed": final.CompletedCount,
	}).Info("simulation run finished")

	c.emit(ctx, events.TypeRunCompleted, runID, "", events.RunCompletedPayload{
		RunID:          final.ID,
		Name:           final.Name,
		Status:         string(final.Status),
		ScenarioCount:  final.ScenarioCount,
		CompletedCount: final.CompletedCount,
		ResolutionRate: final.ResolutionRate,
		EscalationRate: final.EscalationRate,
	})
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}

// applyAggregates fills the run averages from completed simulations only.
// They stay nil when nothing completed.
func applyAggregates(run *domain.SimulationRun, results []Result) {
	var (
		n                                       float64
		duration, messages, latency             float64
		resolved, escalated, csatSum, csatCount float64
	)
	for _, r := range results {
		if r.Status != domain.SimulationCompleted {
			continue
		}
		n++
		duration += r.DurationSeconds
		messages += float64(r.MessageCount)
		latency += r.AvgResponseLatency
		if r.WasResolved {
			resolved++
		}
		if r.WasEscalated {
			escalated++
		}
		if r.SimulatedCSAT != nil && *r.SimulatedCSAT > 0 {
			csatSum += float64(*r.SimulatedCSAT)
			csatCount++
		}
	}
	if n == 0 {
		return
	}
	ratio := func(v, d float64) *float64 { x := v / d; return &x }
	run.AvgDuration = ratio(duration, n)
	run.AvgMessageCount = ratio(messages, n)
	run.ResolutionRate = ratio(resolved, n)
	run.EscalationRate = ratio(escalated, n)
	run.AvgLatency = ratio(latency, n)
	if csatCount > 0 {
		run.AvgSatisfaction = ratio(csatSum, csatCount)
	}
}

type transcript struct {
	history   []Turn
	latencies []int64
	actions   []domain.ActionType // distinct, first-seen order
	convID    string
	resolved  bool
	escalated bool
	blocked   bool
	reason    string
	injection int
	blockedN  int
	vulnFlags int
}

// RunSingle drives one persona through its scenario. Engine failures and
// timeouts end up in the returned Result and the stored record; an error is
// returned only when the simulation record itself cannot be written.
func (c *Controller) RunSingle(ctx context.Context, runID string, p Persona, sc Scenario, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	start := c.now()
	rec, err := c.store.CreateSimulation(ctx, domain.SimulationRecord{
		RunID:               runID,
		PersonaID:           p.ID,
		PersonaName:         p.Name,
		ScenarioType:        sc.Category,
		ScenarioDescription: sc.Description,
		Status:              domain.SimulationRunning,
		StartedAt:           start.UTC(),
		CreatedAt:           start.UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("create simulation for %s: %w", p.ID, err)
	}
	log := c.log.WithFields(logrus.Fields{"simulation_id": rec.ID, "persona": p.ID, "scenario": sc.Category})
	log.Debug("simulation started")

	simCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tr := &transcript{}
	runErr := c.converse(simCtx, rec.ID, p, sc, start, timeout, tr)
	if runErr == nil && simCtx.Err() != nil {
		runErr = ErrTimeout
	}
	if errors.Is(runErr, ErrTimeout) && ctx.Err() != nil {
		runErr = fmt.Errorf("simulation cancelled: %w", ctx.Err())
	}

	// persistence after this point must survive the simulation deadline
	persistCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		return c.finishFailed(persistCtx, rec, p, sc, start, runErr, log), nil
	}

	eval := c.evaluator.Evaluate(ctx, p, sc, tr.history)
	match := AssessResolution(p.Expected, Outcome{
		Resolved:  tr.resolved,
		Escalated: tr.escalated,
		Blocked:   tr.blocked,
		Actions:   tr.actions,
	})

	duration := c.now().Sub(start).Seconds()
	avg, peak := latencyStats(tr.latencies)
	completedAt := c.now().UTC()
	csat := eval.CSAT

	rec.Status = domain.SimulationCompleted
	rec.CompletedAt = &completedAt
	rec.ConversationID = tr.convID
	rec.DurationSeconds = duration
	rec.MessageCount = len(tr.history)
	rec.UserMessageCount, rec.AssistantMsgCount = countRoles(tr.history)
	rec.WasResolved = tr.resolved
	rec.WasEscalated = tr.escalated
	rec.WasBlocked = tr.blocked
	rec.EscalateReason = tr.reason
	rec.ActionsTaken = tr.actions
	rec.AvgResponseLatency = avg
	rec.MaxResponseLatency = peak
	rec.SimulatedCSAT = &csat
	rec.EvaluationNotes = fmt.Sprintf("%s\n\nResolution match: %s", eval.Notes, match.Details)
	rec.InjectionAttempts = tr.injection
	rec.BlockedAttempts = tr.blockedN
	rec.VulnerabilityFlags = tr.vulnFlags
	if err := c.store.UpdateSimulation(persistCtx, rec); err != nil {
		return Result{}, fmt.Errorf("finish simulation %s: %w", rec.ID, err)
	}

	result := Result{
		SimulationID:       rec.ID,
		PersonaID:          p.ID,
		ScenarioID:         sc.ID,
		Status:             domain.SimulationCompleted,
		ConversationID:     tr.convID,
		DurationSeconds:    duration,
		MessageCount:       len(tr.history),
		AvgResponseLatency: avg,
		MaxResponseLatency: peak,
		WasResolved:        tr.resolved,
		WasEscalated:       tr.escalated,
		WasBlocked:         tr.blocked,
		EscalateReason:     tr.reason,
		ActionsTaken:       tr.actions,
		SimulatedCSAT:      &csat,
		EvaluationNotes:    eval.Notes,
		Match:              match,
		InjectionAttempts:  tr.injection,
		BlockedAttempts:    tr.blockedN,
		VulnerabilityFlags: tr.vulnFlags,
	}
	log.WithFields(logrus.Fields{
		"resolved":  result.WasResolved,
		"escalated": result.WasEscalated,
		"blocked":   result.WasBlocked,
		"matched":   match.Matched,
	}).Info("simulation completed")
	c.finished(persistCtx, runID, p, result)
	return result, nil
}

func (c *Controller) converse(ctx context.Context, simulationID string, p Persona, sc Scenario, start time.Time, timeout time.Duration, tr *transcript) error {
	for turn := 0; turn < sc.MaxTurns; turn++ {
		if c.now().Sub(start) > timeout || ctx.Err() != nil {
			return ErrTimeout
		}

		msg := c.simulator.Next(ctx, p, sc, tr.history, turn)
		if ctx.Err() != nil {
			return ErrTimeout
		}
		tr.history = append(tr.history, Turn{Role: domain.RoleUser, Content: msg.Message})
		if containsInjection(p, msg.Message) {
			tr.injection++
		}
		if containsSignal(p, msg.Message) {
			tr.vulnFlags++
		}

		sent := c.now()
		res, err := c.engine.HandleMessage(ctx, orchestrator.Request{
			ConversationID: tr.convID,
			Message:        msg.Message,
			Channel:        domain.ChannelSimulation,
			TraceID:        simulationID,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ErrTimeout
			}
			return fmt.Errorf("turn %d: %w", turn+1, err)
		}
		latency := c.now().Sub(sent).Milliseconds()
		tr.latencies = append(tr.latencies, latency)
		tr.convID = res.ConversationID
		tr.history = append(tr.history, Turn{Role: domain.RoleAssistant, Content: res.Response})

		if res.Blocked {
			tr.blockedN++
			tr.blocked = true
		}
		var actionType domain.ActionType
		if res.ActionTaken != nil {
			actionType = res.ActionTaken.Type
			if !slices.Contains(tr.actions, actionType) {
				tr.actions = append(tr.actions, actionType)
			}
		}
		if res.ShouldEscalate {
			tr.escalated = true
			tr.reason = res.EscalateReason
		}

		if err := c.saveTurn(ctx, simulationID, msg, res, latency, actionType); err != nil {
			return err
		}

		// the simulator's own verdict decides resolution; the heuristic only
		// ends the loop
		if msg.IsFinished {
			tr.resolved = msg.FinishReason == FinishSatisfied
			return nil
		}
		if done, reason := CheckCompletion(tr.history, tr.escalated, tr.blocked); done {
			switch reason {
			case ReasonEscalated:
				tr.escalated = true
			case ReasonResolutionConfirmed:
				tr.resolved = true
			}
			return nil
		}
	}
	return nil
}

func (c *Controller) saveTurn(ctx context.Context, simulationID string, msg CustomerMessage, res orchestrator.Result, latency int64, actionType domain.ActionType) error {
	emotion := msg.EmotionLevel
	if _, err := c.store.AppendSimulationMessage(ctx, domain.SimulationMessage{
		SimulationID:  simulationID,
		Role:          domain.RoleUser,
		Content:       msg.Message,
		PersonaIntent: msg.Intent,
		EmotionLevel:  &emotion,
		CreatedAt:     c.now().UTC(),
	}); err != nil {
		return fmt.Errorf("save simulated customer message: %w", err)
	}
	confidence := res.Confidence
	if _, err := c.store.AppendSimulationMessage(ctx, domain.SimulationMessage{
		SimulationID:    simulationID,
		Role:            domain.RoleAssistant,
		Content:         res.Response,
		Intent:          res.Intent,
		Confidence:      &confidence,
		ResponseLatency: &latency,
		ActionTaken:     actionType,
		CreatedAt:       c.now().UTC(),
	}); err != nil {
		return fmt.Errorf("save assistant reply: %w", err)
	}
	return nil
}

func (c *Controller) finishFailed(ctx context.Context, rec domain.SimulationRecord, p Persona, sc Scenario, start time.Time, cause error, log logrus.FieldLogger) Result {
	status := domain.SimulationFailed
	if errors.Is(cause, ErrTimeout) {
		status = domain.SimulationTimeout
	}
	completedAt := c.now().UTC()
	duration := c.now().Sub(start).Seconds()
	rec.Status = status
	rec.ErrorMessage = cause.Error()
	rec.CompletedAt = &completedAt
	rec.DurationSeconds = duration
	if err := c.store.UpdateSimulation(ctx, rec); err != nil {
		log.WithError(err).Error("simulation failure could not be recorded")
	}
	log.WithError(cause).WithField("status", status).Warn("simulation did not complete")

	result := Result{
		SimulationID:    rec.ID,
		PersonaID:       p.ID,
		ScenarioID:      sc.ID,
		Status:          status,
		DurationSeconds: duration,
		Error:           cause.Error(),
	}
	c.finished(ctx, rec.RunID, p, result)
	return result
}

func (c *Controller) finished(ctx context.Context, runID string, p Persona, r Result) {
	if c.observer != nil {
		c.observer.SimulationFinished(string(r.Status), r.DurationSeconds)
	}
	c.emit(ctx, events.TypeSimulationCompleted, r.SimulationID, r.ConversationID, events.SimulationCompletedPayload{
		SimulationID:    r.SimulationID,
		RunID:           runID,
		PersonaID:       p.ID,
		Status:          string(r.Status),
		WasResolved:     r.WasResolved,
		WasEscalated:    r.WasEscalated,
		WasBlocked:      r.WasBlocked,
		MessageCount:    r.MessageCount,
		DurationSeconds: r.DurationSeconds,
	})
}

func (c *Controller) emit(ctx context.Context, eventType events.EventType, traceID, conversationID string, payload any) {
	if c.dispatcher == nil {
		return
	}
	event, err := events.New(eventType, traceID, conversationID, payload, c.now())
	if err != nil {
		c.log.WithError(err).WithField("event_type", eventType).Warn("event encode failed")
		return
	}
	c.dispatcher.Dispatch(context.WithoutCancel(ctx), event)
}

// containsInjection reports whether msg carries the opening of any scripted
// attack, compared case-insensitively.
func containsInjection(p Persona, msg string) bool {
	lower := strings.ToLower(msg)
	for _, attempt := range p.InjectionAttempts {
		probe := []rune(strings.ToLower(attempt))
		if len(probe) > injectionProbeLen {
			probe = probe[:injectionProbeLen]
		}
		if strings.Contains(lower, string(probe)) {
			return true
		}
	}
	return false
}

func containsSignal(p Persona, msg string) bool {
	lower := strings.ToLower(msg)
	for _, signal := range p.VulnerabilitySignals {
		if strings.Contains(lower, strings.ToLower(signal)) {
			return true
		}
	}
	return false
}

func latencyStats(latencies []int64) (avg, peak float64) {
	if len(latencies) == 0 {
		return 0, 0
	}
	var sum int64
	for _, l := range latencies {
		sum += l
		if float64(l) > peak {
			peak = float64(l)
		}
	}
	return float64(sum) / float64(len(latencies)), peak
}

func countRoles(history []Turn) (user, assistant int) {
	for _, t := range history {
		switch t.Role {
		case domain.RoleUser:
			user++
		case domain.RoleAssistant:
			assistant++
		}
	}
	return user, assistant
}
