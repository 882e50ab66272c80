// Package app wires the process-scoped object graph: one replica store,
// one subscription manager, one session, and the services built on them.
// Components receive their collaborators by reference at construction;
// nothing reaches for a hidden singleton.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/core/service"
	"github.com/fieldops/job-tracker/internal/infrastructure/config"
	memoryauth "github.com/fieldops/job-tracker/internal/infrastructure/db/memory"
	mongodb "github.com/fieldops/job-tracker/internal/infrastructure/db/mongo"
	redisdb "github.com/fieldops/job-tracker/internal/infrastructure/db/redis"
	"github.com/fieldops/job-tracker/internal/infrastructure/queue"
	"github.com/fieldops/job-tracker/internal/infrastructure/replica"
	"github.com/fieldops/job-tracker/internal/infrastructure/syncer"
	"github.com/fieldops/job-tracker/internal/infrastructure/syncer/loopback"
	"github.com/fieldops/job-tracker/internal/infrastructure/syncer/mongosync"
	"github.com/fieldops/job-tracker/internal/metrics"
)

const tokenTTL = 24 * time.Hour

// App is the assembled node: everything the presentation layer talks to.
type App struct {
	Store         *replica.Store
	Subscriptions *replica.Subscriptions
	Session       *service.SessionService
	Transitions   *service.TransitionService
	Queries       *service.LiveQueryService
	Profiles      *service.ProfileService
	Alerts        *service.AlertService
	Seeder        *service.SeedService

	cfg        *config.Config
	dispatcher *queue.Dispatcher
	inbound    *syncer.Inbound
	mongoCli   *mongo.Client
	log        zerolog.Logger
}

// New builds the object graph. Network-backed collaborators are dialed
// here; Run starts the background machinery.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := replica.New(log)
	if err != nil {
		return nil, err
	}
	sink := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)

	a := &App{Store: store, cfg: cfg, log: log}

	var (
		syncClient ports.SyncClient
		authRepo   ports.AuthRepository
	)
	switch cfg.SyncBackend {
	case "mongo":
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		a.mongoCli = client
		mongoAuth := mongodb.NewAuthRepository(db)
		if err := mongoAuth.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("auth indexes: %w", err)
		}
		authRepo = mongoAuth
		syncClient = mongosync.NewClient(db, log)
	case "loopback":
		syncClient = loopback.NewHub().Client()
		authRepo = memoryauth.NewAuthRepository()
	default:
		return nil, fmt.Errorf("unknown sync backend %q", cfg.SyncBackend)
	}

	var dedup syncer.Deduper
	if cfg.Redis.Addr != "" {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return nil, err
		}
		dedup = redisdb.NewDedupChecker(rdb)
	} else {
		dedup = syncer.NewMemoryDedup()
	}

	a.dispatcher = queue.NewDispatcher(cfg.OutboundWorkers, syncClient, sink, log)
	a.inbound = syncer.NewInbound(store, syncClient, dedup, sink, log)
	a.Subscriptions = replica.NewSubscriptions(store, syncClient, sink, log)

	a.Session = service.NewSessionService(authRepo, store, a.dispatcher, cfg.JWTSecret, tokenTTL, log)
	a.Transitions = service.NewTransitionService(store, a.Session, a.dispatcher, sink, log)
	a.Queries = service.NewLiveQueryService(store, a.Subscriptions, a.Session, sink, log)
	a.Profiles = service.NewProfileService(store, a.Session, a.dispatcher, log)
	a.Seeder = service.NewSeedService(store, a.dispatcher, log)

	return a, nil
}

// Run starts outbound propagation and inbound draining, then blocks until
// the core subscriptions hold their initial data.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	go func() {
		if err := a.inbound.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Msg("inbound sync stopped")
		}
	}()

	for name, scope := range map[string]ports.Scope{
		ports.SubLocations: {Entity: domain.EntityLocation},
		ports.SubUsers:     {Entity: domain.EntityUser},
		ports.SubJobs:      {Entity: domain.EntityJob},
	} {
		if err := a.Subscriptions.Ensure(ctx, name, scope); err != nil {
			return err
		}
	}

	a.Alerts = service.NewAlertService(a.Store, a.log)

	if a.cfg.Seed {
		if err := a.Seeder.Seed(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases external connections and background registrations.
func (a *App) Close(ctx context.Context) {
	if a.Alerts != nil {
		a.Alerts.Close()
	}
	if a.mongoCli != nil {
		if err := a.mongoCli.Disconnect(ctx); err != nil {
			a.log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}
}
