package storeapi

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config selects the listen address, auth and backing repository. An empty
// MongoURI keeps everything in memory.
type Config struct {
	Addr          string
	APIKey        string
	MongoURI      string
	MongoDatabase string
}

// Module wires the store server into an fx application. The caller supplies
// Config and a *zap.Logger.
var Module = fx.Module("storeapi",
	fx.Provide(
		NewFiberApp,
		ProvideRepository,
		func(repo Repository, cfg Config, logger *zap.Logger) *Server {
			return NewServer(repo, ServerOptions{APIKey: cfg.APIKey, Logger: logger})
		},
	),
	fx.Invoke(RegisterRoutes, StartServer),
)

// ProvideRepository connects to Mongo when configured and registers the
// disconnect hook.
func ProvideRepository(lc fx.Lifecycle, cfg Config, logger *zap.Logger) (Repository, error) {
	if cfg.MongoURI == "" {
		logger.Info("store using memory repository")
		return NewMemoryRepository(), nil
	}
	client, err := ConnectMongo(context.Background(), cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	dbName := cfg.MongoDatabase
	if dbName == "" {
		dbName = "sheetboard"
	}
	repo := NewMongoRepository(client.Database(dbName))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.EnsureIndexes(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})
	logger.Info("store using mongo repository", zap.String("database", dbName))
	return repo, nil
}

// RegisterRoutes mounts the server on the app.
func RegisterRoutes(app *fiber.App, srv *Server) {
	srv.Setup(app)
}

// StartServer listens on cfg.Addr for the lifetime of the fx app.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("store listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := app.Listener(ln); err != nil {
					logger.Error("store server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}
