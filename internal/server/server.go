package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rolohq/rolo/internal/queue"
	mid "github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/internal/storage"
	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/ai"
	oai "github.com/rolohq/rolo/pkg/ai/ollama"
	gai "github.com/rolohq/rolo/pkg/ai/openai"
	"github.com/rolohq/rolo/pkg/graph"
	"github.com/rolohq/rolo/pkg/leaselock"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/query"
	pgxstore "github.com/rolohq/rolo/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewAIClient builds the model client named by AI_ADAPTER. The default is
// the OpenAI compatible adapter.
func NewAIClient() ai.Client {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrent: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
	}
}

func runMigrations() {
	m, err := migrate.New("file://migrations", util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to init migrations", "err", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runMigrations()

	poolCfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Invalid database URL", "err", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	conn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	s3 := storage.NewS3Client(ctx)
	aiClient := NewAIClient()

	graphStore := pgxstore.New(conn)
	locker := leaselock.New(conn)
	resolver := graph.NewResolver(graphStore, locker, graph.DefaultResolverConfig())
	scorer := graph.NewScorer(graphStore, graph.DefaultScorerConfig())
	merger := graph.NewMerger(graphStore, locker, scorer)
	pipeline := graph.NewPipeline(graphStore, resolver, scorer, aiClient)
	engine := query.NewEngine(graphStore, aiClient, query.DefaultConfig())

	app := &mid.App{
		DBConn:   conn,
		Queue:    ch,
		Key:      &k,
		S3:       s3,
		AiClient: aiClient,

		Store:    graphStore,
		Resolver: resolver,
		Scorer:   scorer,
		Merger:   merger,
		Pipeline: pipeline,
		Engine:   engine,

		MasterAPIKey:  util.GetEnv("MASTER_API_KEY"),
		MasterOwnerID: util.GetEnv("MASTER_OWNER_ID"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("8M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
