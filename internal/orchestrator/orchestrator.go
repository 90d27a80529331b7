package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/action"
	"carsa.local/complaints/internal/customerctx"
	"carsa.local/complaints/internal/dispatch"
	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/events"
	"carsa.local/complaints/internal/guardrail"
	"carsa.local/complaints/internal/intent"
	"carsa.local/complaints/internal/logging"
	"carsa.local/complaints/internal/model"
	"carsa.local/complaints/internal/prompts"
	"carsa.local/complaints/internal/session"
	"carsa.local/complaints/internal/store"
)

const HistoryLimit = 20

var ErrEmptyMessage = errors.New("message is required")

// Store is the persistence the orchestrator needs.
type Store interface {
	store.CustomerLookup
	store.ConversationStore
	store.ComplaintStore
}

type Classifier interface {
	Classify(ctx context.Context, message string) intent.Result
}

type TurnObserver interface {
	TurnCompleted(outcome string, seconds float64)
}

type Request struct {
	// ConversationID continues an existing conversation; empty or unknown
	// ids start a new one.
	ConversationID string
	Message        string
	Channel        string
	TraceID        string
}

type ActionTaken struct {
	Type        domain.ActionType
	Description string
}

type Result struct {
	Response       string
	ConversationID string
	Intent         domain.Intent
	Confidence     float64
	ActionTaken    *ActionTaken
	ShouldEscalate bool
	EscalateReason string
	Customer       *domain.CustomerContext
	Blocked        bool
	Outcome        Outcome
	Trace          []State
	Latency        time.Duration
}

type Orchestrator struct {
	store      Store
	generator  model.Generator
	guardrail  *guardrail.Engine
	classifier Classifier
	resolver   *customerctx.Resolver
	executor   *action.Executor
	limits     action.Limits
	dispatcher *dispatch.Dispatcher
	scheduler  *session.Scheduler
	observer   TurnObserver
	actionObs  action.Observer
	log        logrus.FieldLogger
	now        func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = logging.OrDiscard(log) }
}

func WithGuardrail(engine *guardrail.Engine) Option {
	return func(o *Orchestrator) { o.guardrail = engine }
}

func WithClassifier(classifier Classifier) Option {
	return func(o *Orchestrator) { o.classifier = classifier }
}

func WithLimits(limits action.Limits) Option {
	return func(o *Orchestrator) { o.limits = limits }
}

func WithDispatcher(dispatcher *dispatch.Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = dispatcher }
}

// WithScheduler serialises turns of the same conversation.
func WithScheduler(scheduler *session.Scheduler) Option {
	return func(o *Orchestrator) { o.scheduler = scheduler }
}

func WithTurnObserver(observer TurnObserver) Option {
	return func(o *Orchestrator) { o.observer = observer }
}

func WithActionObserver(observer action.Observer) Option {
	return func(o *Orchestrator) { o.actionObs = observer }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(st Store, generator model.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		generator: generator,
		limits:    action.DefaultLimits(),
		log:       logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.guardrail == nil {
		o.guardrail = guardrail.NewEngine(guardrail.WithLogger(o.log))
	}
	if o.classifier == nil {
		o.classifier = intent.NewClassifier(generator, o.log)
	}
	o.resolver = customerctx.NewResolver(st, customerctx.WithLogger(o.log), customerctx.WithClock(o.now))
	o.executor = action.NewExecutor(st, o.limits,
		action.WithLogger(o.log),
		action.WithObserver(o.actionObs),
		action.WithClock(func() time.Time { return o.now().UTC() }),
	)
	return o
}

// StartConversation opens a conversation and stores the welcome message.
func (o *Orchestrator) StartConversation(ctx context.Context, channel string) (domain.Conversation, string, error) {
	conv, err := o.store.CreateConversation(ctx, domain.Conversation{
		Channel: channelOrDefault(channel),
		Status:  domain.ConversationActive,
	})
	if err != nil {
		return domain.Conversation{}, "", fmt.Errorf("create conversation: %w", err)
	}
	if _, err := o.store.AppendMessage(ctx, domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        prompts.WelcomeMessage,
	}); err != nil {
		return domain.Conversation{}, "", fmt.Errorf("save welcome message: %w", err)
	}
	return conv, prompts.WelcomeMessage, nil
}

// HandleMessage runs one customer turn. Model failures degrade to canned
// replies; an error means the turn could not be persisted.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) (Result, error) {
	if o.scheduler == nil || req.ConversationID == "" {
		return o.handle(ctx, req)
	}
	var result Result
	err := o.scheduler.Do(ctx, req.ConversationID, func(ctx context.Context) error {
		var err error
		result, err = o.handle(ctx, req)
		return err
	})
	return result, err
}

type turn struct {
	req     Request
	start   time.Time
	trace   []State
	verdict guardrail.Verdict
	conv    domain.Conversation
	exists  bool
	log     logrus.FieldLogger
}

func (t *turn) enter(state State) {
	t.trace = append(t.trace, state)
}

func (o *Orchestrator) handle(ctx context.Context, req Request) (Result, error) {
	t := &turn{req: req, start: o.now(), trace: []State{StateReceived}}
	if t.req.TraceID == "" {
		t.req.TraceID = req.ConversationID
	}

	t.verdict = o.guardrail.Check(req.Message)
	t.enter(StateGuardrailed)
	if t.verdict.Sanitized == "" {
		return Result{}, ErrEmptyMessage
	}

	if req.ConversationID != "" {
		conv, err := o.store.GetConversation(ctx, req.ConversationID)
		switch {
		case err == nil:
			t.conv, t.exists = conv, true
		case !errors.Is(err, store.ErrNotFound):
			return Result{}, fmt.Errorf("load conversation: %w", err)
		}
	}

	var (
		result Result
		err    error
	)
	switch {
	case t.verdict.ShouldBlock:
		result, err = o.blocked(ctx, t)
	case t.verdict.ShouldEscalate:
		result, err = o.escalated(ctx, t)
	case t.verdict.IsVulnerable:
		result, err = o.vulnerable(ctx, t)
	default:
		result, err = o.generated(ctx, t)
	}
	if err != nil {
		o.fail(ctx, t, err)
		return Result{}, err
	}

	t.enter(StateReplied)
	result.Trace = t.trace
	result.Latency = o.now().Sub(t.start)
	o.complete(ctx, t, result)
	return result, nil
}

func (o *Orchestrator) blocked(ctx context.Context, t *turn) (Result, error) {
	t.enter(StateBlocked)
	if err := o.ensureConversation(ctx, t, nil); err != nil {
		return Result{}, err
	}
	if err := o.saveExchange(ctx, t, guardrail.BlockResponse); err != nil {
		return Result{}, err
	}
	return Result{
		Response:       guardrail.BlockResponse,
		ConversationID: t.conv.ID,
		Intent:         domain.IntentOther,
		Confidence:     1.0,
		Blocked:        true,
		Outcome:        OutcomeBlocked,
	}, nil
}

func (o *Orchestrator) escalated(ctx context.Context, t *turn) (Result, error) {
	t.enter(StateEscalated)
	customer := o.resolver.Resolve(ctx, customerctx.Keys{
		CustomerID: t.conv.CustomerID,
		Email:      customerctx.ExtractEmail(t.verdict.Sanitized),
	})
	if err := o.ensureConversation(ctx, t, customer); err != nil {
		return Result{}, err
	}
	response := EscalationResponse(t.verdict.EscalationFamily)
	if err := o.saveExchange(ctx, t, response); err != nil {
		return Result{}, err
	}
	if customer != nil {
		o.escalateComplaint(ctx, t, customer, domain.CategoryVehicleCondition, domain.PriorityUrgent, t.verdict.EscalationReason)
	}
	return Result{
		Response:       response,
		ConversationID: t.conv.ID,
		ShouldEscalate: true,
		EscalateReason: t.verdict.EscalationReason,
		Customer:       customer,
		Outcome:        OutcomeEscalated,
	}, nil
}

func (o *Orchestrator) vulnerable(ctx context.Context, t *turn) (Result, error) {
	t.enter(StateVulnerable)
	customer := o.resolver.Resolve(ctx, customerctx.Keys{
		CustomerID: t.conv.CustomerID,
		Email:      customerctx.ExtractEmail(t.verdict.Sanitized),
	})
	if err := o.ensureConversation(ctx, t, customer); err != nil {
		return Result{}, err
	}
	if err := o.saveExchange(ctx, t, VulnerableResponse); err != nil {
		return Result{}, err
	}
	signals := strings.Join(t.verdict.VulnerabilitySignals, ", ")
	if customer != nil {
		o.escalateComplaint(ctx, t, customer, domain.CategoryCommunication, domain.PriorityHigh, "Vulnerable customer: "+signals)
	}
	return Result{
		Response:       VulnerableResponse,
		ConversationID: t.conv.ID,
		ShouldEscalate: true,
		EscalateReason: "Vulnerability detected: " + signals,
		Customer:       customer,
		Outcome:        OutcomeVulnerable,
	}, nil
}

func (o *Orchestrator) generated(ctx context.Context, t *turn) (Result, error) {
	classification := o.classifier.Classify(ctx, t.verdict.Sanitized)
	t.enter(StateClassified)

	customer := o.resolver.Resolve(ctx, customerctx.Keys{
		CustomerID:  t.conv.CustomerID,
		Email:       classification.Entities.Email,
		OrderNumber: classification.Entities.OrderNumber,
		VehicleReg:  classification.Entities.VehicleReg,
	})
	t.enter(StateContextualized)

	if err := o.ensureConversation(ctx, t, customer); err != nil {
		return Result{}, err
	}
	confidence := classification.Confidence
	if _, err := o.store.AppendMessage(ctx, domain.Message{
		ConversationID: t.conv.ID,
		Role:           domain.RoleUser,
		Content:        t.verdict.Sanitized,
		Intent:         classification.Intent,
		Confidence:     &confidence,
	}); err != nil {
		return Result{}, fmt.Errorf("save user message: %w", err)
	}

	history, err := o.store.RecentMessages(ctx, t.conv.ID, HistoryLimit)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	prompt := prompts.Conversation(o.policy(), history, customer, customer.PrimaryOrder())

	outcome := OutcomeGenerated
	reply, err := o.generate(ctx, prompt)
	if err != nil {
		t.log.WithError(err).Warn("reply generation failed, using fallback")
		reply = FallbackReply()
		outcome = OutcomeFallback
	}
	t.enter(StateGenerated)

	replyConfidence := reply.Confidence
	latency := o.now().Sub(t.start).Milliseconds()
	if _, err := o.store.AppendMessage(ctx, domain.Message{
		ConversationID: t.conv.ID,
		Role:           domain.RoleAssistant,
		Content:        reply.Message,
		Intent:         reply.Intent,
		Confidence:     &replyConfidence,
		LatencyMS:      &latency,
	}); err != nil {
		return Result{}, fmt.Errorf("save assistant message: %w", err)
	}

	result := Result{
		Response:       reply.Message,
		ConversationID: t.conv.ID,
		Intent:         reply.Intent,
		Confidence:     reply.Confidence,
		ShouldEscalate: reply.ShouldEscalate,
		EscalateReason: reply.EscalateReason,
		Customer:       customer,
		Outcome:        outcome,
	}
	if reply.Action != nil && customer != nil {
		result.ActionTaken = o.executeDirective(ctx, t, customer, reply)
		t.enter(StateActionExecuted)
	}
	return result, nil
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (Reply, error) {
	raw, err := o.generator.Generate(ctx, model.TierMain, prompt)
	if err != nil {
		return Reply{}, err
	}
	return ParseReply(raw)
}

func (o *Orchestrator) executeDirective(ctx context.Context, t *turn, customer *domain.CustomerContext, reply Reply) *ActionTaken {
	complaint, err := o.store.CreateComplaint(ctx, domain.Complaint{
		CustomerID: customer.ID,
		OrderID:    primaryOrderID(customer),
		Category:   domain.IntentCategory(reply.Intent),
		Priority:   domain.PriorityNormal,
	})
	if err != nil {
		t.log.WithError(err).Error("create complaint failed")
		return nil
	}
	outcome, err := o.executor.Execute(ctx, complaint.ID, reply.Action)
	if err != nil || !outcome.Success {
		return nil
	}
	return &ActionTaken{Type: outcome.Type, Description: outcome.Description}
}

func (o *Orchestrator) escalateComplaint(ctx context.Context, t *turn, customer *domain.CustomerContext, category domain.ComplaintCategory, priority domain.Priority, reason string) {
	complaint, err := o.store.CreateComplaint(ctx, domain.Complaint{
		CustomerID: customer.ID,
		OrderID:    primaryOrderID(customer),
		Category:   category,
		Priority:   priority,
	})
	if err != nil {
		t.log.WithError(err).Error("create escalation complaint failed")
		return
	}
	if _, err := o.executor.Execute(ctx, complaint.ID, action.Escalate{Reason: reason}); err != nil {
		t.log.WithError(err).Error("escalate complaint failed")
	}
}

// ensureConversation creates the conversation on first use and links the
// resolved customer to it.
func (o *Orchestrator) ensureConversation(ctx context.Context, t *turn, customer *domain.CustomerContext) error {
	customerID := ""
	if customer != nil {
		customerID = customer.ID
	}
	if !t.exists {
		conv, err := o.store.CreateConversation(ctx, domain.Conversation{
			CustomerID: customerID,
			Channel:    channelOrDefault(t.req.Channel),
			Status:     domain.ConversationActive,
		})
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		t.conv, t.exists = conv, true
	} else if t.conv.CustomerID == "" && customerID != "" {
		if err := o.store.SetConversationCustomer(ctx, t.conv.ID, customerID); err != nil {
			return fmt.Errorf("link customer: %w", err)
		}
		t.conv.CustomerID = customerID
	}

	if t.req.TraceID == "" {
		t.req.TraceID = t.conv.ID
	}
	t.log = o.log.WithFields(logrus.Fields{"conversation_id": t.conv.ID, "trace_id": t.req.TraceID})
	t.log.WithField("state", t.trace[len(t.trace)-1]).Info("turn start")
	o.emit(ctx, t, events.TypeTurnStarted, events.TurnStartedPayload{Channel: t.conv.Channel})
	if t.verdict.InjectionDetected {
		o.emit(ctx, t, events.TypeInjectionDetected, events.InjectionDetectedPayload{
			Severity: string(t.verdict.InjectionSeverity),
			Blocked:  t.verdict.ShouldBlock,
			Patterns: t.verdict.InjectionPatterns,
		})
	}
	return nil
}

// saveExchange stores the sanitized user message and a canned reply.
func (o *Orchestrator) saveExchange(ctx context.Context, t *turn, response string) error {
	if _, err := o.store.AppendMessage(ctx, domain.Message{
		ConversationID: t.conv.ID,
		Role:           domain.RoleUser,
		Content:        t.verdict.Sanitized,
	}); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	if _, err := o.store.AppendMessage(ctx, domain.Message{
		ConversationID: t.conv.ID,
		Role:           domain.RoleAssistant,
		Content:        response,
	}); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, t *turn, result Result) {
	payload := events.TurnCompletedPayload{
		Outcome:        string(result.Outcome),
		Intent:         string(result.Intent),
		Confidence:     result.Confidence,
		ShouldEscalate: result.ShouldEscalate,
		EscalateReason: result.EscalateReason,
		Blocked:        result.Blocked,
		LatencyMS:      result.Latency.Milliseconds(),
	}
	if result.ActionTaken != nil {
		payload.ActionType = string(result.ActionTaken.Type)
	}
	o.emit(ctx, t, events.TypeTurnCompleted, payload)
	if o.observer != nil {
		o.observer.TurnCompleted(string(result.Outcome), result.Latency.Seconds())
	}
	t.log.WithFields(logrus.Fields{
		"outcome": result.Outcome,
		"intent":  result.Intent,
		"state":   StateReplied,
	}).Info("turn complete")
}

func (o *Orchestrator) fail(ctx context.Context, t *turn, err error) {
	log := t.log
	if log == nil {
		log = o.log
	}
	log.WithError(err).WithField("state", t.trace[len(t.trace)-1]).Error("turn failed")
	o.emit(ctx, t, events.TypeTurnFailed, events.TurnFailedPayload{Error: err.Error()})
	if o.observer != nil {
		o.observer.TurnCompleted("failed", o.now().Sub(t.start).Seconds())
	}
}

func (o *Orchestrator) emit(ctx context.Context, t *turn, eventType events.EventType, payload any) {
	if o.dispatcher == nil {
		return
	}
	event, err := events.New(eventType, t.req.TraceID, t.conv.ID, payload, o.now())
	if err != nil {
		o.log.WithError(err).Warn("build event failed")
		return
	}
	o.dispatcher.Dispatch(context.WithoutCancel(ctx), event)
}

func (o *Orchestrator) policy() prompts.Policy {
	return prompts.Policy{RefundLimit: o.limits.RefundLimit, DiscountPercentLimit: o.limits.DiscountPercentLimit}
}

func primaryOrderID(customer *domain.CustomerContext) string {
	if order := customer.PrimaryOrder(); order != nil {
		return order.ID
	}
	return ""
}

func channelOrDefault(channel string) string {
	if strings.TrimSpace(channel) == "" {
		return domain.ChannelWebchat
	}
	return channel
}
