package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/rolohq/rolo/pkg/ai"
	"github.com/rolohq/rolo/pkg/graph"
	"github.com/rolohq/rolo/pkg/query"
	"github.com/rolohq/rolo/pkg/store"
)

type AppUser struct {
	OwnerID     string
	Role        string
	Permissions []string
}

// App bundles the shared service handles every request needs. It is built
// once at startup and attached to each request by AppContextMiddleware.
type App struct {
	DBConn   *pgxpool.Pool
	Queue    *amqp091.Channel
	Key      *keyfunc.Keyfunc
	S3       *s3.Client
	AiClient ai.Client

	Store    store.GraphStore
	Resolver *graph.Resolver
	Scorer   *graph.Scorer
	Merger   *graph.Merger
	Pipeline *graph.Pipeline
	Engine   *query.Engine

	MasterAPIKey  string
	MasterOwnerID string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
