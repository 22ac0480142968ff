package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/OldStager01/imagizer-autoscaler/api"
	"github.com/OldStager01/imagizer-autoscaler/api/handlers"
	"github.com/OldStager01/imagizer-autoscaler/internal/auth"
	"github.com/OldStager01/imagizer-autoscaler/internal/collector"
	"github.com/OldStager01/imagizer-autoscaler/internal/events"
	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/internal/metrics"
	"github.com/OldStager01/imagizer-autoscaler/internal/orchestrator"
	"github.com/OldStager01/imagizer-autoscaler/internal/resilience"
	"github.com/OldStager01/imagizer-autoscaler/internal/scaler"
	"github.com/OldStager01/imagizer-autoscaler/pkg/config"
	"github.com/OldStager01/imagizer-autoscaler/pkg/database"
	"github.com/OldStager01/imagizer-autoscaler/pkg/database/queries"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	printRules := flag.Bool("print-rules", false, "print the effective scaling rules and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if *printRules {
		out, err := yaml.Marshal(map[string]interface{}{"rules": cfg.Decision.EffectiveRules()})
		if err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	telemetry, err := metrics.Setup(metrics.Config{
		StatsdAddress: cfg.Telemetry.StatsdAddress,
		Interval:      cfg.Telemetry.Interval,
		Retain:        cfg.Telemetry.Retain,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	deps := api.Dependencies{Checks: map[string]handlers.Checker{}}
	var (
		store events.Store
		db    *database.DB
	)

	if cfg.Database.Enabled {
		db, err = database.New(cfg.Database.ToDBConfig())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		logger.Info("Database connection established")

		if err := prepareDatabase(cfg, db); err != nil {
			return err
		}
		if *migrate {
			logger.Info("Migrations completed successfully")
			return nil
		}

		eventStore := queries.NewEventStore(db.DB)
		store = eventStore
		deps.Users = queries.NewUserRepository(db.DB)
		deps.Checks["database"] = db
		deps.History = handlers.HistoryStores{
			Events:    eventStore.ScalingEvents(),
			Decisions: eventStore.Decisions(),
			Metrics:   eventStore.Metrics(),
		}
	} else {
		if *migrate {
			return errors.New("migrations require database.enabled")
		}
		logger.Warn("Database disabled, scaling history is kept in memory only")
		deps.Users = auth.NewStaticUsers(cfg.Auth.UserHashes())
	}

	orch := orchestrator.New(orchestrator.Config{
		Interval:         cfg.Decision.Interval,
		CollectTimeout:   cfg.Collector.Timeout,
		ActuationTimeout: cfg.Scaler.Timeout,
		BufferSize:       cfg.Decision.BufferSize,
		HistorySize:      cfg.Decision.HistorySize,
		EventBufferSize:  cfg.Events.BufferSize,
		Region:           cfg.AWS.Region,
		Env:              cfg.Tags.Env,
		Tags:             cfg.Tags.Extra,
		Metrics:          telemetry,
	}, store)
	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer orch.Stop()

	if err := startClusters(cfg, orch, telemetry, deps.Checks); err != nil {
		return err
	}

	deps.Manager = orch
	deps.Events = orch
	server := api.NewServer(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if db != nil && cfg.Database.SampleRetention > 0 {
		repo := queries.NewMetricsRepository(db.DB)
		g.Go(func() error {
			pruneSamples(ctx, repo, cfg.Database.SampleRetention)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Autoscaler stopped gracefully")
	return nil
}

// prepareDatabase migrates the schema, registers configured clusters and
// seeds configured users.
func prepareDatabase(cfg *config.Config, db *database.DB) error {
	timeout := cfg.Database.MigrationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Running database migrations")
	if err := database.NewMigrator(db).Run(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	clusters := queries.NewClusterRepository(db.DB)
	for _, cc := range cfg.Clusters {
		if err := clusters.Upsert(ctx, cc.Model(cfg.Decision)); err != nil {
			return fmt.Errorf("failed to register cluster %s: %w", cc.ID, err)
		}
	}

	users := queries.NewUserRepository(db.DB)
	for _, u := range cfg.Auth.Users {
		if _, err := users.Ensure(ctx, u.Username, u.PasswordHash); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Username, err)
		}
	}

	return nil
}

func pruneSamples(ctx context.Context, repo *queries.MetricsRepository, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		deleted, err := repo.DeleteBefore(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warnf("Failed to prune metric samples: %v", err)
		case deleted > 0:
			logger.Infof("Pruned %d metric samples older than %s", deleted, retention)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func startClusters(cfg *config.Config, orch *orchestrator.Orchestrator, telemetry *metrics.Metrics, checks map[string]handlers.Checker) error {
	var sess *session.Session
	for _, cc := range cfg.Clusters {
		if !cc.UsesAWS() {
			continue
		}
		awsCfg := &aws.Config{Region: aws.String(cfg.AWS.Region)}
		if cfg.AWS.Endpoint != "" {
			awsCfg.Endpoint = aws.String(cfg.AWS.Endpoint)
		}
		s, err := session.NewSession(awsCfg)
		if err != nil {
			return fmt.Errorf("failed to create AWS session: %w", err)
		}
		sess = s
		break
	}

	onBreaker := func(name string, from, to resilience.State) {
		telemetry.SetCircuitBreakerState(name, int(to))
	}

	for _, cc := range cfg.Clusters {
		engineCfg := cc.EngineConfig(cfg.Decision)

		source, err := buildCollector(cfg, cc, sess)
		if err != nil {
			return err
		}
		coll := collector.NewResilientCollector(collector.ResilientCollectorConfig{
			Collector:     source,
			Name:          "collector:" + cc.ID,
			MaxFailures:   cfg.Collector.CircuitBreaker.MaxFailures,
			Timeout:       cfg.Collector.CircuitBreaker.Timeout,
			RetryAttempts: cfg.Collector.RetryAttempts,
			RetryDelay:    cfg.Collector.RetryDelay,
			OnStateChange: onBreaker,
		})

		act, err := buildActuator(cfg, cc, sess, orch.Publisher(), engineCfg.InitialCapacity, onBreaker)
		if err != nil {
			return err
		}

		if err := orch.StartCluster(orchestrator.ClusterSpec{
			ID:        cc.ID,
			Decision:  engineCfg,
			Collector: coll,
			Actuator:  act,
		}); err != nil {
			return fmt.Errorf("failed to start cluster %s: %w", cc.ID, err)
		}
		checks["collector:"+cc.ID] = coll
	}

	return nil
}

func buildCollector(cfg *config.Config, cc config.ClusterConfig, sess *session.Session) (collector.Collector, error) {
	switch cc.Collector {
	case config.CollectorHTTP:
		return collector.NewHTTPCollector(collector.HTTPCollectorConfig{
			Endpoint: cc.MetricsEndpoint,
			Timeout:  cfg.Collector.Timeout,
		}), nil
	case config.CollectorCloudWatch:
		return collector.NewCloudWatchCollector(collector.CloudWatchCollectorConfig{
			Client: cloudwatch.New(sess),
			Targets: map[string]collector.CloudWatchTarget{
				cc.ID: {
					AutoScalingGroupName: cc.AutoScalingGroupName,
					LoadBalancer:         cc.LoadBalancer,
					TargetGroup:          cc.TargetGroup,
				},
			},
			Period:   cfg.Collector.Period,
			Lookback: cfg.Collector.Lookback,
		}), nil
	case config.CollectorMock:
		mock := collector.NewMockCollector(collector.MockCollectorConfig{Variance: 0.1})
		mock.SetValue(cc.ID, models.MetricCPUUtilization, 45)
		mock.SetValue(cc.ID, models.MetricRequestCountPerTarget, 120000)
		mock.SetValue(cc.ID, models.MetricHTTP5XXCount, 10)
		return mock, nil
	default:
		return nil, fmt.Errorf("cluster %s: unknown collector %q", cc.ID, cc.Collector)
	}
}

func buildActuator(cfg *config.Config, cc config.ClusterConfig, sess *session.Session, publisher *events.Publisher, initial int, onBreaker func(string, resilience.State, resilience.State)) (scaler.Actuator, error) {
	switch cc.Actuator {
	case config.ActuatorSimulator:
		sim := scaler.NewSimulatorScaler(scaler.SimulatorConfig{
			ProvisionTime: cfg.Scaler.ProvisionTime,
			DrainTimeout:  cfg.Scaler.DrainTimeout,
			Callbacks: scaler.StateCallbacks{
				OnInstanceInService:  publisher.InstanceChanged,
				OnInstanceTerminated: publisher.InstanceChanged,
			},
		})
		sim.InitializeCluster(cc.ID, initial)
		return sim, nil
	case config.ActuatorHTTP:
		return scaler.NewHTTPScaler(scaler.HTTPScalerConfig{
			Endpoint: cc.CapacityEndpoint,
			Timeout:  cfg.Scaler.Timeout,
		}), nil
	case config.ActuatorASG:
		return scaler.NewASGScaler(scaler.ASGScalerConfig{
			Client:        autoscaling.New(sess),
			Groups:        map[string]string{cc.ID: cc.AutoScalingGroupName},
			RetryAttempts: cfg.Scaler.RetryAttempts,
			RetryDelay:    cfg.Scaler.RetryDelay,
			OnStateChange: onBreaker,
		}), nil
	default:
		return nil, fmt.Errorf("cluster %s: unknown actuator %q", cc.ID, cc.Actuator)
	}
}
