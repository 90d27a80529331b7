package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/action"
	"carsa.local/complaints/internal/config"
	"carsa.local/complaints/internal/dispatch"
	"carsa.local/complaints/internal/guardrail"
	"carsa.local/complaints/internal/model"
	"carsa.local/complaints/internal/orchestrator"
	"carsa.local/complaints/internal/session"
	"carsa.local/complaints/internal/simulation"
	"carsa.local/complaints/internal/store"
	"carsa.local/complaints/internal/subscribers"
	"carsa.local/complaints/internal/subscribers/kafka"
	logsub "carsa.local/complaints/internal/subscribers/logging"
	"carsa.local/complaints/internal/subscribers/webhook"
	"carsa.local/complaints/internal/telemetry"
)

const (
	schedulerQueueSize = 16
	shutdownTimeout    = 10 * time.Second
)

// newGenerator builds the model cascade. Tests replace it with a scripted
// generator.
var newGenerator = func(ctx context.Context, cfg config.Config, log logrus.FieldLogger, observer model.CascadeObserver) (model.Generator, func() error, error) {
	mainBackends, err := model.ParseBackends(cfg.MainModels)
	if err != nil {
		return nil, nil, fmt.Errorf("main models: %w", err)
	}
	fastBackends, err := model.ParseBackends(cfg.FastModels)
	if err != nil {
		return nil, nil, fmt.Errorf("fast models: %w", err)
	}
	registry := model.NewDefaultRegistry(map[string]string{
		model.ProviderGemini:    cfg.GeminiAPIKey,
		model.ProviderOpenAI:    cfg.OpenAIAPIKey,
		model.ProviderAnthropic: cfg.AnthropicAPIKey,
	})

	opts := []model.CascadeOption{
		model.WithResetInterval(cfg.CascadeResetInterval),
		model.WithBackoff(cfg.CascadeBackoff),
		model.WithCascadeLogger(log),
		model.WithCascadeObserver(observer),
	}
	closeState := func() error { return nil }
	if cfg.RedisURL != "" {
		state, err := model.NewRedisTierStateFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis tier state: %w", err)
		}
		opts = append(opts, model.WithTierState(state))
		closeState = state.Close
	}
	return model.NewCascade(registry, model.DefaultTiers(mainBackends, fastBackends), opts...), closeState, nil
}

var openStore = func(cfg config.Config, log logrus.FieldLogger) (store.Store, error) {
	st, err := store.NewGormStore(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// app is the wired support engine shared by chat and simulate.
type app struct {
	cfg        config.Config
	log        *logrus.Logger
	store      store.Store
	collectors *telemetry.Collectors
	dispatcher *dispatch.Dispatcher
	scheduler  *session.Scheduler
	engine     *orchestrator.Orchestrator
	generator  model.Generator

	metricsSrv *http.Server
	closers    []func() error
}

func newApp(ctx context.Context, cfg config.Config, log *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	registry := prometheus.NewRegistry()
	a.collectors = telemetry.New(registry)
	if cfg.MetricsAddr != "" {
		a.serveMetrics(registry)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	generator, closeGenerator, err := newGenerator(ctx, cfg, log, a.collectors)
	if err != nil {
		a.close()
		return nil, err
	}
	a.generator = generator
	a.closers = append(a.closers, closeGenerator)

	subs := []subscribers.Subscriber{logsub.New(log)}
	hookEvents, err := webhook.ParseEvents(cfg.WebhookEvents)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("webhook events: %w", err)
	}
	for idx, webhookURL := range cfg.WebhookURLs {
		subs = append(subs, webhook.New(webhook.Config{
			Name:   webhookSubscriberName(idx, webhookURL),
			URL:    webhookURL,
			Secret: cfg.WebhookSecret,
			Events: hookEvents,
		}, log))
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		subs = append(subs, producer)
		a.closers = append(a.closers, producer.Close)
	}
	a.dispatcher = dispatch.New(log, subs, dispatch.WithFailureObserver(a.collectors))
	a.scheduler = session.NewScheduler(log, schedulerQueueSize)

	a.engine = orchestrator.New(st, generator,
		orchestrator.WithLogger(log),
		orchestrator.WithGuardrail(guardrail.NewEngine(
			guardrail.WithLogger(log),
			guardrail.WithObserver(a.collectors),
		)),
		orchestrator.WithLimits(action.Limits{
			RefundLimit:          cfg.RefundLimit,
			DiscountPercentLimit: cfg.DiscountPercentLimit,
			DiscountValueLimit:   cfg.DiscountValueLimit,
		}),
		orchestrator.WithDispatcher(a.dispatcher),
		orchestrator.WithScheduler(a.scheduler),
		orchestrator.WithTurnObserver(a.collectors),
		orchestrator.WithActionObserver(a.collectors),
	)
	return a, nil
}

func (a *app) controller() *simulation.Controller {
	return simulation.NewController(a.store, a.engine, a.generator,
		simulation.WithLogger(a.log),
		simulation.WithDispatcher(a.dispatcher),
		simulation.WithObserver(a.collectors),
		simulation.WithTimeout(a.cfg.SimulationTimeout),
		simulation.WithParallelism(a.cfg.SimulationParallelism),
	)
}

func (a *app) serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.log.WithField("addr", a.cfg.MetricsAddr).Info("metrics endpoint listening")
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("metrics endpoint stopped")
		}
	}()
}

// close drains in-flight turns and events before releasing resources.
func (a *app) close() {
	if a.scheduler != nil {
		a.scheduler.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("metrics endpoint shutdown")
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close error")
		}
	}
	a.closers = nil
}

func webhookSubscriberName(index int, webhookURL string) string {
	parsed, err := url.Parse(webhookURL)
	if err == nil {
		host := strings.TrimSpace(parsed.Host)
		if host != "" {
			return host
		}
	}
	return fmt.Sprintf("webhook-%d", index+1)
}
