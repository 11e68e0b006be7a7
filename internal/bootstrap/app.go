package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/ai"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/app"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/cache"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/config"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
	mysqlClient "github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/mysql"
	rabbitmqClient "github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/rabbitmq"
	redisClient "github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/redis"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/repository"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/worker"
)

// Component names as they appear in the initialization failure body.
const (
	ComponentChat      = "Chat"
	ComponentRetrain   = "Retrain"
	ComponentDocuments = "Documents"
	ComponentAuth      = "Admin token"
	ComponentRuns      = "Retrain history"
)

var errNotConfigured = errors.New("not configured")

type App struct {
	Config *config.Config
	Logger *logger.Logger

	MySQL     *gorm.DB
	Redis     *redis.Client
	MQConn    *amqp.Connection
	RunWorker *worker.RetrainRunWorker

	Documents *app.DocumentService
	Chat      *app.ChatRelay
	Retrain   *app.RetrainRelay
	AdminAuth *app.AdminAuthService
	Runs      *repository.RetrainRunRepository

	// InitErrors holds the components that could not be built. The router
	// mounts a degraded responder for each of them.
	InitErrors map[string]error
	StartedAt  time.Time
}

// New builds every component it can. Only a failure that leaves nothing to
// serve is returned as an error; optional integrations that fail are logged
// and left out.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		Config:     cfg,
		Logger:     log,
		InitErrors: make(map[string]error),
		StartedAt:  time.Now(),
	}

	a.initDocuments()
	a.initChat()
	a.initIntegrations(ctx)
	a.initRetrain()
	a.initAdminAuth()

	for component, err := range a.InitErrors {
		log.Warn("component unavailable", "component", component, "err", err)
	}
	return a, nil
}

func (a *App) initDocuments() {
	docs, err := app.NewDocumentService(a.Config.Documents.Dir, a.Config.Documents.MaxUploadBytes)
	if err != nil {
		a.InitErrors[ComponentDocuments] = err
		return
	}
	if err := docs.CheckWritable(); err != nil {
		a.InitErrors[ComponentDocuments] = fmt.Errorf("document directory %s is not writable: %w", docs.Dir(), err)
		return
	}
	a.Documents = docs
	a.Logger.Info("document directory ready", "dir", docs.Dir(), "max_bytes", docs.MaxBytes())
}

func (a *App) initChat() {
	client, err := ai.NewInferenceClient(a.Config.Inference.URL)
	if err != nil {
		a.InitErrors[ComponentChat] = err
		return
	}
	a.Chat = app.NewChatRelay(client, a.Config.ChatTimeout())
}

func (a *App) initIntegrations(ctx context.Context) {
	cfg := a.Config

	if cfg.RedisEnabled() {
		client, err := redisClient.New(ctx, redisClient.Options{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			ClientName: cfg.App.Name,
		})
		if err != nil {
			a.Logger.Warn("redis unavailable, retrain guard is local to this process", "err", err)
		} else {
			a.Redis = client
		}
	}

	if cfg.MySQLEnabled() {
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.App.LogMode != "prod")
		if err == nil {
			runs := repository.NewRetrainRunRepository(db)
			if err = runs.Migrate(); err == nil {
				a.MySQL = db
				a.Runs = runs
			} else {
				_ = mysqlClient.Close(db)
			}
		}
		if err != nil {
			a.InitErrors[ComponentRuns] = err
		}
	} else {
		a.InitErrors[ComponentRuns] = errNotConfigured
	}

	if cfg.RabbitMQEnabled() {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.App.Name)
		if err != nil {
			a.Logger.Warn("rabbitmq unavailable, retrain runs go straight to the store", "err", err)
			return
		}
		a.MQConn = conn

		if a.Runs != nil && cfg.RabbitMQ.PersistEvents {
			runWorker := worker.NewRetrainRunWorker(conn, a.Runs, cfg.RabbitMQ.RetrainQueue, a.Logger)
			if err := runWorker.Start(ctx); err != nil {
				a.Logger.Warn("start retrain run worker failed", "err", err)
				return
			}
			a.RunWorker = runWorker
		}
	}
}

func (a *App) initRetrain() {
	cfg := a.Config
	trainer, err := ai.NewTrainerClient(cfg.Trainer.URL)
	if err != nil {
		a.InitErrors[ComponentRetrain] = err
		return
	}

	a.Retrain = app.NewRetrainRelay(trainer, cfg.RetrainTimeout(),
		app.WithJobGuard(a.jobGuard()),
		app.WithRunPublisher(a.runPublisher()),
		app.WithRelayLogger(a.Logger.With("component", "retrain")),
	)
}

func (a *App) jobGuard() app.JobGuard {
	switch {
	case !a.Config.Trainer.SingleFlight:
		return app.NewNoopJobGuard()
	case a.Redis != nil:
		// The lock outlives the longest possible run so a crashed holder
		// cannot block retraining forever.
		return cache.NewRetrainLock(a.Redis, a.Config.Trainer.LockKey, a.Config.RetrainTimeout()+time.Minute)
	default:
		return app.NewLocalJobGuard()
	}
}

// runPublisher only publishes to the queue when a worker drains it.
func (a *App) runPublisher() app.RunPublisher {
	switch {
	case a.RunWorker != nil:
		return rabbitmqClient.NewRunPublisher(a.MQConn, a.Config.RabbitMQ.RetrainQueue, a.Config.App.Name)
	case a.Runs != nil:
		return storePublisher{runs: a.Runs}
	default:
		return app.NewNoopRunPublisher()
	}
}

func (a *App) initAdminAuth() {
	cfg := a.Config.Auth
	if cfg.AdminPasswordHash == "" || cfg.JWTSecret == "" {
		a.InitErrors[ComponentAuth] = errNotConfigured
		return
	}
	svc, err := app.NewAdminAuthService(cfg.AdminPasswordHash, cfg.JWTSecret, a.Config.JWTExpiration())
	if err != nil {
		a.InitErrors[ComponentAuth] = err
		return
	}
	a.AdminAuth = svc
}

// storePublisher writes snapshots directly when no worker drains the queue.
type storePublisher struct {
	runs *repository.RetrainRunRepository
}

func (p storePublisher) PublishRun(ctx context.Context, run model.RetrainRun) error {
	return p.runs.Upsert(ctx, &run)
}

func (a *App) Close() error {
	var closeErr error
	if a.RunWorker != nil {
		a.RunWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if err := mysqlClient.Close(a.MySQL); err != nil {
		closeErr = err
	}
	return closeErr
}
