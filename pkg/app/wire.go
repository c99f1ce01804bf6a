package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/policychat/internal/cache"
	"github.com/flemzord/policychat/internal/config"
	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/cron"
	"github.com/flemzord/policychat/internal/health"
	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/session"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/internal/telemetry"
)

const (
	healthProbeTimeout = 5 * time.Second
	traceFlushTimeout  = 5 * time.Second
)

// chainModule runs the provider chain's background probing as part of
// the App lifecycle.
type chainModule struct {
	chain *provider.Chain
}

func (m *chainModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "assistant.providers"}
}

func (m *chainModule) Start() error {
	m.chain.Start(context.Background())
	return nil
}

func (m *chainModule) Stop(_ context.Context) error {
	m.chain.Stop()
	return nil
}

// schedulerModule runs the maintenance jobs as part of the App lifecycle.
type schedulerModule struct {
	*cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "assistant.cron"}
}

// wire builds the assistant on top of the loaded backend modules and
// registers it for the gateways. Must be called after LoadModules and
// before Start.
func (rt *Runtime) wire() error {
	cfg := rt.Config
	logger := rt.Logger

	s, ok := core.Service[store.Store](rt.AppCtx, store.ServiceName)
	if !ok {
		return errors.New("app: no session store module registered a store")
	}
	r, ok := core.Service[retrieval.Retriever](rt.AppCtx, retrieval.ServiceName)
	if !ok {
		return errors.New("app: no retriever module registered a retriever")
	}

	var members []provider.Member
	var providerIDs []string
	for _, id := range config.ModulesInGroup(cfg, config.GroupProvider) {
		mod, ok := rt.App.Module(id)
		if !ok {
			continue
		}
		m, ok := mod.(provider.Member)
		if !ok {
			return fmt.Errorf("app: module %s cannot join the provider chain", id)
		}
		members = append(members, m)
		providerIDs = append(providerIDs, id)
	}
	chain, err := provider.ChainFromMembers(members, provider.WithLogger(logger.With("component", "providers")))
	if err != nil {
		return fmt.Errorf("app: build provider chain: %w", err)
	}

	metrics := telemetry.NewMetrics()
	a := cfg.Assistant

	sessions, err := session.NewManager(session.Config{
		Store:       s,
		TTL:         a.SessionTTL,
		MaxSessions: a.MaxSessions,
		Logger:      logger.With("component", "sessions"),
	})
	if err != nil {
		return err
	}
	answers, err := cache.New(cache.Config{
		Store:        s,
		Judge:        chain,
		TTL:          a.SessionTTL,
		JudgeTimeout: a.SimilarityTimeout,
		Logger:       logger.With("component", "cache"),
	})
	if err != nil {
		return err
	}
	assistant, err := router.New(router.Config{
		Sessions:          sessions,
		Cache:             answers,
		Retriever:         r,
		Generator:         chain,
		QueryResults:      a.QueryResults,
		FollowupResults:   a.FollowupResults,
		RelevanceCutoff:   a.RelevanceCutoff,
		MinCacheLength:    a.MinCacheLength,
		GenerationTimeout: a.GenerationTimeout,
		RetrievalTimeout:  a.RetrievalTimeout,
		ClassifyTimeout:   a.ClassifyTimeout,
		AcknowledgeCached: a.AcknowledgeCached,
		EngagementPrompts: a.EngagementPrompts,
		Persona:           a.Persona,
		Logger:            logger.With("component", "router"),
		Metrics:           metrics,
		Tracer:            telemetry.Tracer(),
	})
	if err != nil {
		return err
	}

	checker := health.NewChecker(healthProbeTimeout, metrics)
	checker.Add("store", true, health.StoreProbe(s))
	checker.Add("retriever", false, health.RetrieverProbe(r))
	checker.Add("generator", false, chain.HealthCheck)

	stats := &health.StatsSource{
		Sessions:  sessions,
		Store:     first(config.ModulesInGroup(cfg, config.GroupStore)),
		Retriever: first(config.ModulesInGroup(cfg, config.GroupRetriever)),
		Providers: providerIDs,
	}

	scheduler := cron.NewScheduler(logger.With("component", "cron"),
		cron.WithMetrics(metrics),
		cron.WithRunOnStart("health_probe", "active_sessions"),
	)
	for _, job := range []cron.Job{
		&cron.HealthProbeJob{Checker: checker, Logger: logger},
		&cron.ActiveSessionsJob{Sessions: sessions, Metrics: metrics, Logger: logger},
		&cron.OrphanSweepJob{Store: s, Logger: logger},
	} {
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
	}

	rt.AppCtx.RegisterService(router.ServiceName, assistant)
	rt.AppCtx.RegisterService(health.ServiceName, checker)
	rt.AppCtx.RegisterService(health.StatsServiceName, stats)
	rt.AppCtx.RegisterService(telemetry.ServiceName, metrics)

	rt.App.AppendModule("assistant.providers", &chainModule{chain: chain})
	rt.App.AppendModule("assistant.cron", &schedulerModule{Scheduler: scheduler})

	rt.Store, rt.Retriever, rt.Chain = s, r, chain
	rt.Router, rt.Metrics, rt.Checker, rt.Stats = assistant, metrics, checker, stats

	logger.Info("assistant wired",
		"store", stats.Store,
		"retriever", stats.Retriever,
		"providers", providerIDs,
	)
	return nil
}

func first(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
