package simulation

import (
	"context"
	"strings"
	"sync"
	"time"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/model"
	"carsa.local/complaints/internal/orchestrator"
)

const (
	defaultCustomerReply = `{"message":"Okay, thanks.","intent":"acknowledge","emotionLevel":0.3,"isFinished":false,"finishReason":null}`
	scoredEvaluationJSON = `{"csatScore":4,"appropriateness":0.9,"accuracy":0.8,"notes":"Handled well"}`
	defaultIntent        = `{"intent":"OTHER","confidence":0.5,"entities":{}}`
	defaultAssistant     = `{"message":"How can I help?","intent":"GENERAL_QUESTION","confidence":0.8,"action":null,"shouldEscalate":false}`
)

// stubGenerator answers by prompt kind: customer simulation, evaluation, or
// the engine's own intent and reply calls.
type stubGenerator struct {
	mu         sync.Mutex
	customer   []string
	customerFn func(prompt string) string
	evaluation string
	evalErr    error
	simErr     error
	prompts    []string
}

func (g *stubGenerator) Generate(_ context.Context, tier, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	switch {
	case strings.HasPrefix(prompt, "You are simulating a customer"):
		if g.simErr != nil {
			return "", g.simErr
		}
		if g.customerFn != nil {
			return g.customerFn(prompt), nil
		}
		if len(g.customer) == 0 {
			return defaultCustomerReply, nil
		}
		out := g.customer[0]
		g.customer = g.customer[1:]
		return out, nil
	case strings.HasPrefix(prompt, "You are evaluating"):
		if g.evalErr != nil {
			return "", g.evalErr
		}
		if g.evaluation == "" {
			return scoredEvaluationJSON, nil
		}
		return g.evaluation, nil
	case tier == model.TierFast:
		return defaultIntent, nil
	default:
		return defaultAssistant, nil
	}
}

func (g *stubGenerator) count(prefix string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.prompts {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

// fakeEngine stands in for the orchestrator.
type fakeEngine struct {
	mu      sync.Mutex
	replies []orchestrator.Result
	err     error
	hang    bool
	reqs    []orchestrator.Request
}

func (e *fakeEngine) HandleMessage(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error) {
	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	hang, err := e.hang, e.err
	var reply *orchestrator.Result
	if len(e.replies) > 0 {
		r := e.replies[0]
		e.replies = e.replies[1:]
		reply = &r
	}
	e.mu.Unlock()

	if hang {
		<-ctx.Done()
		return orchestrator.Result{}, ctx.Err()
	}
	if err != nil {
		return orchestrator.Result{}, err
	}
	if reply == nil {
		reply = &orchestrator.Result{Response: "How can I help?", Intent: domain.IntentGeneralQuestion, Confidence: 0.8}
	}
	if reply.ConversationID == "" {
		reply.ConversationID = "conv-" + req.TraceID
	}
	return *reply, nil
}

func (e *fakeEngine) requests() []orchestrator.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]orchestrator.Request(nil), e.reqs...)
}

type finishedCounter struct {
	mu       sync.Mutex
	statuses []string
}

func (f *finishedCounter) SimulationFinished(status string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func fixedScenarios(at time.Time) *ScenarioGenerator {
	return &ScenarioGenerator{now: func() time.Time { return at }, intn: func(int) int { return 0 }}
}

func mustPersona(id string) Persona {
	p, ok := PersonaByID(id)
	if !ok {
		panic("unknown persona " + id)
	}
	return p
}
