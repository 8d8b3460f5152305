package injector

import (
	"errors"
	"os"

	"github.com/google/wire"

	"github.com/zeusync/aitree/internal/config"
	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/ai/debug"
	"github.com/zeusync/aitree/internal/core/ai/loader"
	"github.com/zeusync/aitree/internal/core/ai/script"
	"github.com/zeusync/aitree/internal/core/events/bus"
	"github.com/zeusync/aitree/internal/core/observability/log"
	"github.com/zeusync/aitree/internal/server"
)

// Runtime is the assembled engine: one zone, its trees and the debugger.
type Runtime struct {
	Config   *config.Config
	Logger   *log.Logger
	Events   bus.EventBus
	Registry *ai.Registry
	Scripts  *script.Engine
	Trees    *loader.TreeLoader
	Zone     *ai.Zone
	Debug    *debug.Server
	HTTP     *server.HTTPServer
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideEventBus,
	ProvideScriptEngine,
	ProvideRegistry,
	ProvideTreeLoader,
	ProvideZone,
	ProvideDebugServer,
	ProvideDebugWebSocket,
	ProvideHTTPServer,
	wire.Struct(new(Runtime), "*"),
)

func ProvideLogger(cfg *config.Config) (*log.Logger, func()) {
	logger := log.New(log.ParseLevel(cfg.Log.Level))
	return logger, func() { _ = logger.Sync() }
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideScriptEngine(cfg *config.Config, logger log.Log) *script.Engine {
	return script.New(cfg.Script.PoolSize, cfg.Script.Timeout, logger)
}

// ProvideRegistry registers the built-in types plus every script found in
// script.dir.
func ProvideRegistry(cfg *config.Config, engine *script.Engine) (*ai.Registry, error) {
	reg := ai.NewRegistry()
	if cfg.Script.Dir == "" {
		return reg, nil
	}
	if err := engine.LoadDir(reg, cfg.Script.Dir); err != nil {
		return nil, err
	}
	return reg, nil
}

// ProvideTreeLoader loads trees.path. A missing path yields an empty loader.
func ProvideTreeLoader(cfg *config.Config, reg *ai.Registry, logger log.Log) (*loader.TreeLoader, error) {
	l := loader.New(reg, logger)
	if cfg.Trees.Path == "" {
		return l, nil
	}
	if _, err := os.Stat(cfg.Trees.Path); errors.Is(err, os.ErrNotExist) {
		logger.Warn("tree path not found", log.String("path", cfg.Trees.Path))
		return l, nil
	}
	if err := l.LoadPath(cfg.Trees.Path); err != nil {
		return nil, err
	}
	logger.Info("behaviour trees ready", log.String("path", cfg.Trees.Path), log.Strings("trees", l.Names()))
	return l, nil
}

func ProvideZone(cfg *config.Config, events bus.EventBus, logger log.Log) *ai.Zone {
	return ai.NewZone(cfg.Zone.Name,
		ai.WithWorkers(cfg.Zone.Workers),
		ai.WithEventBus(events),
		ai.WithZoneLogger(logger),
	)
}

func ProvideDebugServer(cfg *config.Config, reg *ai.Registry, zone *ai.Zone, events bus.EventBus, logger log.Log) (*debug.Server, func(), error) {
	dbg := debug.New(reg,
		debug.WithLogger(logger),
		debug.WithBroadcastRate(cfg.Debug.BroadcastHz, cfg.Debug.BroadcastBurst),
		debug.WithEventBus(events),
	)
	if err := dbg.AddZone(zone); err != nil {
		return nil, nil, err
	}
	return dbg, func() { _ = dbg.Close() }, nil
}

func ProvideDebugWebSocket(cfg *config.Config, dbg *debug.Server, logger log.Log) *server.DebugWebSocket {
	ws := server.NewDebugWebSocket(dbg,
		server.WithAuthenticator(server.TokenAuth{Token: cfg.Debug.Token}),
		server.WithWebSocketLogger(logger),
	)
	dbg.AddBroadcaster(ws)
	return ws
}

func ProvideHTTPServer(ws *server.DebugWebSocket, logger log.Log) *server.HTTPServer {
	return server.NewHTTPServer(ws, logger)
}
