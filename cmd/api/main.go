// Package main - точка входа HTTP API Course Hub.
//
// Собирает приложение: хранилище (PostgreSQL или память), Redis (шина
// событий, чат-релей, кэш статистики), шлюз документов, файловое хранилище
// и HTTP сервер.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coursehub/coursehub-platform/config"
	"github.com/coursehub/coursehub-platform/internal/application/command"
	"github.com/coursehub/coursehub-platform/internal/application/eventhandler"
	"github.com/coursehub/coursehub-platform/internal/application/issuance"
	"github.com/coursehub/coursehub-platform/internal/application/query"
	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/auth"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/docgen"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/messaging"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/persistence/postgres"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/persistence/redis"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/scheduler"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/scheduler/jobs"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/storage"
	apihttp "github.com/coursehub/coursehub-platform/internal/interface/http"
	"github.com/coursehub/coursehub-platform/internal/interface/http/handlers"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// eventBus - шина событий с освобождением ресурсов.
type eventBus interface {
	shared.EventBus
	Close() error
}

// app держит ресурсы, которые нужно закрыть при остановке.
type app struct {
	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close закрывает ресурсы в обратном порядке.
func (a *app) close(log *logger.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("resource close failed", logger.Err(err))
		}
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: true,
	})
	defer func() { _ = log.Sync() }()

	log.Info("starting Course Hub API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	a := &app{}
	defer a.close(log)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	store, err := setupStore(ctx, cfg, a, health, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS: ШИНА СОБЫТИЙ, РЕЛЕЙ ЧАТА, КЭШ СТАТИСТИКИ
	// ─────────────────────────────────────────────────────────────────────────
	bus, relay, stats, err := setupMessaging(ctx, cfg, a, health, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ДОКУМЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	gateway, err := setupGateway(cfg, health, log)
	if err != nil {
		return err
	}

	blobs, err := storage.Open(ctx, storage.Config{
		Backend:            cfg.Storage.Backend,
		LocalDir:           cfg.Storage.LocalDir,
		PublicBaseURL:      cfg.Storage.PublicBaseURL,
		GCSBucket:          cfg.Storage.GCSBucket,
		GCSPrefix:          cfg.Storage.GCSPrefix,
		GCSCredentialsFile: cfg.Storage.GCSCredentialsFile,
		GCSEmulatorHost:    cfg.Storage.GCSEmulatorHost,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open document storage: %w", err)
	}
	a.onClose(blobs.Close)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. АУТЕНТИФИКАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET is empty, using an ephemeral secret")
	}
	tokens, err := auth.NewJWTManager(auth.Config{
		Secret:    secret,
		Issuer:    cfg.Auth.JWTIssuer,
		AccessTTL: cfg.Auth.AccessTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОБРАБОТЧИКИ КОМАНД, ЗАПРОСОВ И СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	cmdDeps := command.Deps{UoW: store, Publisher: bus, Log: log}
	qDeps := query.Deps{UoW: store, Archive: issuance.NewArchive(blobs), Publisher: bus, Log: log}

	contracts := issuance.NewContractIssuer(gateway, blobs, nil, log)
	certificates := issuance.NewCertificateIssuer(gateway, blobs, nil, log)

	createUser := command.NewCreateUserHandler(cmdDeps, cfg.Auth.BcryptCost)

	commands := apihttp.Commands{
		CreateUser:        createUser,
		Authenticate:      command.NewAuthenticateHandler(cmdDeps, tokens),
		CreateCourse:      command.NewCreateCourseHandler(cmdDeps),
		AddModule:         command.NewAddModuleHandler(cmdDeps),
		AddLesson:         command.NewAddLessonHandler(cmdDeps),
		AddQuestion:       command.NewAddQuestionHandler(cmdDeps),
		RegisterForCourse: command.NewRegisterForCourseHandler(cmdDeps, contracts),
		StartLesson:       command.NewStartLessonHandler(cmdDeps),
		FinishLesson:      command.NewFinishLessonHandler(cmdDeps),
		GenerateTest:      command.NewGenerateTestHandler(cmdDeps),
		StartTest:         command.NewStartTestHandler(cmdDeps),
		SubmitTest:        command.NewSubmitTestHandler(cmdDeps),
		GiveFeedback:      command.NewGiveFeedbackHandler(cmdDeps),
		SendMessage:       command.NewSendMessageHandler(cmdDeps, relay),
	}

	var statsCache query.StatisticsCache
	if stats != nil {
		statsCache = stats
	}
	testResults := query.NewGetTestResultHandler(qDeps, certificates)
	queries := apihttp.Queries{
		ListCourses:         query.NewListCoursesHandler(qDeps),
		GetCourse:           query.NewGetCourseHandler(qDeps),
		ListModules:         query.NewListModulesHandler(qDeps),
		ListLessons:         query.NewListLessonsHandler(qDeps),
		GetModule:           query.NewGetModuleHandler(qDeps),
		GetLesson:           query.NewGetLessonHandler(qDeps),
		ListFeedback:        query.NewListFeedbackHandler(qDeps),
		ListEnrollments:     query.NewListEnrollmentsHandler(qDeps),
		ListResults:         query.NewListResultsHandler(qDeps),
		GetTestResult:       testResults,
		InitialTestResult:   query.NewInitialTestResultHandler(qDeps),
		DownloadCertificate: query.NewDownloadCertificateHandler(qDeps, testResults),
		DownloadContract:    query.NewDownloadContractHandler(qDeps),
		ListMessages:        query.NewListMessagesHandler(qDeps),
		GetStatistics:       query.NewGetStatisticsHandler(qDeps, statsCache, cfg.Redis.StatisticsTTL),
	}

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{Subscriber: bus, Logger: log})
	a.onClose(dispatcher.Stop)
	if err := subscribeHandlers(dispatcher, store, stats, log); err != nil {
		return err
	}

	if err := seedAdmin(ctx, cfg, createUser, log); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
	if cfg.Scheduler.Enabled {
		redeliver := jobs.NewRedeliverDeadLettersJob(dispatcher, cfg.Scheduler.RedeliveryBatch, log)
		if err := sched.Register(redeliver, scheduler.Every(cfg.Scheduler.RedeliveryInterval)); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	server := apihttp.NewServer(apihttp.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		EnableCORS:         cfg.HTTP.EnableCORS,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		ClosedRegistration: cfg.Features.IsEnabled(config.FeatureClosedRegistration, nil),
		Version:            cfg.App.Version,
	}, apihttp.Dependencies{
		Commands:      commands,
		Queries:       queries,
		Tokens:        tokens,
		HealthChecker: health,
		Logger:        log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Scheduler.Enabled {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop HTTP server gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupStore выбирает PostgreSQL или хранилище в памяти.
func setupStore(ctx context.Context, cfg *config.Config, a *app, health *handlers.CompositeHealthChecker, log *logger.Logger) (uow.UnitOfWork, error) {
	if cfg.Database.InMemory() {
		log.Warn("DATABASE_URL is empty, using the in-memory store")
		return memory.NewStore(), nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.onClose(func() error {
		conn.Close()
		return nil
	})

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	health.AddCheck("postgres", handlers.NewPingCheck(conn))
	log.Info("connected to PostgreSQL")
	return postgres.NewStore(conn), nil
}

// setupMessaging собирает шину событий, релей чата и кэш статистики.
// Без Redis используются реализации в памяти, кэша статистики нет.
func setupMessaging(ctx context.Context, cfg *config.Config, a *app, health *handlers.CompositeHealthChecker, log *logger.Logger) (eventBus, chat.Relay, *redis.StatisticsCache, error) {
	localBus := messaging.DefaultInMemoryEventBusConfig()
	localBus.Logger = log

	relayOn := cfg.Features.IsEnabled(config.FeatureChatRelay, nil)

	if cfg.Redis.Disabled {
		bus := messaging.NewInMemoryEventBus(localBus)
		a.onClose(bus.Close)

		var relay chat.Relay
		if relayOn {
			relay = messaging.NewMemoryRelay(cfg.Chat.LocalBuffer)
		}
		log.Warn("Redis is disabled, using in-process event bus and chat relay")
		return bus, relay, nil, nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	cache := redis.NewCache(client)
	a.onClose(cache.Close)
	health.AddCheck("redis", handlers.NewPingCheck(cache))

	pubsub := redis.NewPubSub(client)
	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         pubsub,
		LocalBusConfig: localBus,
		Logger:         log,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	a.onClose(bus.Close)

	var relay chat.Relay
	if relayOn {
		relay = messaging.NewRedisRelay(pubsub, cfg.Chat.RelayPrefix)
	}

	var stats *redis.StatisticsCache
	if cfg.Features.IsEnabled(config.FeatureStatisticsCache, nil) {
		stats = redis.NewStatisticsCache(cache)
	}

	log.Info("connected to Redis", logger.String("addr", redisCfg.Addr()))
	return bus, relay, stats, nil
}

// setupGateway выбирает шлюз документов: HTTP клиент или заглушку.
func setupGateway(cfg *config.Config, health *handlers.CompositeHealthChecker, log *logger.Logger) (document.Gateway, error) {
	if cfg.DocGen.StubEnabled() {
		log.Warn("DOCGEN_URL is empty, documents are rendered by the stub")
		return docgen.NewStub(), nil
	}

	templates, err := docgen.LoadTemplates(cfg.DocGen.TemplatesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load document templates: %w", err)
	}

	var converter document.Converter
	switch cfg.DocGen.Converter {
	case "exec":
		converter = docgen.NewExecConverter(cfg.DocGen.ConverterBinary, cfg.DocGen.ConverterTimeout, log)
	default:
		converter = docgen.NewHTTPConverter(cfg.DocGen.ConverterURL, cfg.DocGen.ConverterTimeout)
	}

	clientCfg := docgen.DefaultClientConfig(cfg.DocGen.BaseURL)
	clientCfg.APIKey = cfg.DocGen.APIKey
	clientCfg.Timeout = cfg.DocGen.Timeout

	client := docgen.NewClient(clientCfg, templates, converter, log)
	health.AddOptionalCheck("docgen", client.Check)
	return client, nil
}

// subscribeHandlers подписывает обработчики событий через диспетчер
// с повторами и очередью недоставленных событий.
func subscribeHandlers(d *messaging.Dispatcher, u uow.UnitOfWork, stats *redis.StatisticsCache, log *logger.Logger) error {
	if err := d.RegisterAll("audit_log", eventhandler.NewAuditLogHandler(log).Handle); err != nil {
		return err
	}
	if err := d.RegisterLocal(shared.EventTestSubmitted, "on_test_submitted", eventhandler.NewOnTestSubmittedHandler(u, log).Handle); err != nil {
		return err
	}
	if stats == nil {
		return nil
	}
	onCatalog := eventhandler.NewOnCatalogChangedHandler(stats, log)
	for _, t := range onCatalog.Events() {
		if err := d.RegisterLocal(t, "on_catalog_changed", onCatalog.Handle); err != nil {
			return err
		}
	}
	return nil
}

// seedAdmin создаёт администратора из конфигурации, если его ещё нет.
func seedAdmin(ctx context.Context, cfg *config.Config, createUser *command.CreateUserHandler, log *logger.Logger) error {
	if cfg.Auth.AdminUsername == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := createUser.Handle(ctx, command.CreateUserCommand{
		Username: cfg.Auth.AdminUsername,
		Name:     cfg.Auth.AdminUsername,
		Role:     shared.RoleAdmin.String(),
		Password: cfg.Auth.AdminPassword,
	})
	switch {
	case err == nil:
		log.Info("bootstrap admin created", logger.String("username", cfg.Auth.AdminUsername))
	case shared.IsConflict(err):
		log.Debug("bootstrap admin already exists")
	default:
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	return nil
}
