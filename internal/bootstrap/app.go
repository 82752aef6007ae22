package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"qwery/internal/agent"
	"qwery/internal/ai"
	"qwery/internal/app"
	"qwery/internal/cache"
	"qwery/internal/config"
	"qwery/internal/datasource"
	"qwery/internal/logging"
	"qwery/internal/platform/database"
	rabbitmqClient "qwery/internal/platform/rabbitmq"
	redisClient "qwery/internal/platform/redis"
	"qwery/internal/repository"
	"qwery/internal/worker"
)

type Services struct {
	Auth          *app.AuthService
	Organizations *app.OrganizationService
	Projects      *app.ProjectService
	Datasources   *app.DatasourceService
	Notebooks     *app.NotebookService
	Conversations *app.ConversationService
	Messages      *app.MessageService
}

type App struct {
	Config        *config.Config
	Logger        zerolog.Logger
	DB            *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.MessagePublisher
	MessageWorker *worker.MessagePersistWorker
	Executor      *datasource.Executor
	HistoryCache  *cache.HistoryCache
	Services      Services

	StartedAt time.Time
}

// OpenDatabase opens the configured metadata store and migrates it.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Open(ctx, cfg.Database, cfg.MySQLDSN(), logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

// New connects every backing service and wires the use cases. Redis and
// RabbitMQ are optional: without them history is not cached and messages are
// written synchronously.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}

	db, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if a.Redis, err = redisClient.New(ctx, cfg.Redis); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
		_ = a.Close()
		return nil, err
	}

	llm, err := ai.NewChatClient(ctx, cfg.LLM.Provider, cfg.LLM.APIKey, logging.Component(logger, "llm"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create llm client failed: %w", err)
	}

	if err := a.wire(ctx, llm); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, llm ai.ChatClient) error {
	cfg := a.Config
	users := repository.NewUserRepository(a.DB)
	orgs := repository.NewOrganizationRepository(a.DB)
	projects := repository.NewProjectRepository(a.DB)
	datasources := repository.NewDatasourceRepository(a.DB)
	notebooks := repository.NewNotebookRepository(a.DB)
	conversations := repository.NewConversationRepository(a.DB)
	messages := repository.NewMessageRepository(a.DB)
	sessions := repository.NewAgentSessionRepository(a.DB)

	var publisher app.MessagePublisher = app.NewDirectMessageWriter(messages)
	if a.MQConn != nil {
		a.Publisher = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)
		a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, messages, cfg.RabbitMQ.MessagePersistQueue,
			logging.Component(a.Logger, "message_worker"))
		if err := a.MessageWorker.Start(ctx); err != nil {
			return fmt.Errorf("start message worker failed: %w", err)
		}
		publisher = a.Publisher
	}

	var historyCache app.HistoryCache
	if a.Redis != nil {
		a.HistoryCache = cache.NewHistoryCache(a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
		historyCache = a.HistoryCache
	}

	var protected []string
	if cfg.Database.Driver == "sqlite" {
		protected = append(protected, cfg.Database.SQLitePath)
	}
	a.Executor = datasource.NewExecutor(logging.Component(a.Logger, "datasource"), datasource.Options{
		RowLimit:   cfg.Agent.RowLimit,
		SQLiteRoot: cfg.Datasource.SQLiteRoot,
		Protected:  protected,
	})

	llmCfg := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}
	agentLogger := logging.Component(a.Logger, "agent")
	factory := agent.NewFactory(conversations, datasources, sessions, agentLogger)
	runner := agent.NewRunner(llm, llmCfg, a.Executor, agent.RunnerOptions{
		MaxSteps:   cfg.Agent.MaxSteps,
		RunTimeout: cfg.AgentRunTimeout(),
		RowLimit:   cfg.Agent.RowLimit,
	}, agentLogger)
	titles := agent.NewTitleGenerator(llm, llmCfg, cfg.TitleTimeout(), agentLogger)

	a.Services = Services{
		Auth:          app.NewAuthService(users, cfg.Auth.JWTSecret, cfg.JWTExpiration()),
		Organizations: app.NewOrganizationService(orgs, projects),
		Projects:      app.NewProjectService(orgs, projects),
		Datasources:   app.NewDatasourceService(orgs, projects, datasources, a.Executor),
		Notebooks:     app.NewNotebookService(orgs, projects, notebooks, datasources, a.Executor),
		Conversations: app.NewConversationService(app.ConversationDeps{
			Organizations: orgs,
			Projects:      projects,
			Conversations: conversations,
			Messages:      messages,
			Sessions:      sessions,
			Datasources:   datasources,
			HistoryCache:  historyCache,
			Titles:        titles,
			Logger:        logging.Component(a.Logger, "conversations"),
		}),
		Messages: app.NewMessageService(app.MessageDeps{
			Organizations: orgs,
			Projects:      projects,
			Conversations: conversations,
			Messages:      messages,
			Publisher:     publisher,
			HistoryCache:  historyCache,
			Agents:        factory,
			Runner:        runner,
			MaxContext:    cfg.LLM.MaxContextMessage,
			Logger:        logging.Component(a.Logger, "messages"),
		}),
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Executor != nil {
		if err := a.Executor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close datasources: %w", err))
		}
	}
	if err := database.Close(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
