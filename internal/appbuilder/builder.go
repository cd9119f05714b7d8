package appbuilder

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/park285/Cheese-Xiangqi/internal/api"
	"github.com/park285/Cheese-Xiangqi/internal/config"
	"github.com/park285/Cheese-Xiangqi/internal/lobby"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/park285/Cheese-Xiangqi/internal/relay"
	"github.com/park285/Cheese-Xiangqi/internal/render"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the wired server components.
type App struct {
	Config   *config.AppConfig
	Messages *msgcat.Catalog
	Store    *api.Store
	API      *api.Server
	Relay    *relay.Relay

	// nil without REDIS_URL
	PvP   *pvpxiangqi.Manager
	Lobby *lobby.Manager
	Repo  pvpxiangqi.ResultStore

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	msgs, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	a := &App{Config: cfg, Messages: msgs}
	renderer := render.NewPNGRenderer()

	if strings.TrimSpace(cfg.RedisURL) != "" {
		if err := a.wirePvP(cfg, renderer, logger); err != nil {
			_ = a.Close()
			return nil, err
		}
	} else {
		logger.Warn("app_pvp_disabled", zap.String("reason", "REDIS_URL not set"))
	}

	a.Store = api.NewStore(cfg.MaxSessions, cfg.GameTTL(), session.WithTrustRemotePeer(cfg.TrustRemotePeer))
	a.API = api.New(api.Deps{
		Store:    a.Store,
		Renderer: renderer,
		Messages: msgs,
		PvP:      a.PvP,
		Lobby:    a.Lobby,
		Logger:   logger,
	})

	relayOpts := []relay.Option{relay.WithLogger(logger)}
	if a.PvP != nil {
		relayOpts = append(relayOpts, relay.WithRecorder(a.PvP))
	}
	a.Relay = relay.New(relayOpts...)
	return a, nil
}

func (a *App) wirePvP(cfg *config.AppConfig, renderer render.BoardRenderer, logger *zap.Logger) error {
	pvp, err := pvpxiangqi.NewManager(cfg.RedisURL, pvpxiangqi.WithTTL(cfg.GameTTL()), pvpxiangqi.WithRenderer(renderer))
	if err != nil {
		return fmt.Errorf("init pvp manager: %w", err)
	}
	a.PvP = pvp
	a.addCloser("pvp", pvp.Close)

	ropts, err := pvpxiangqi.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(ropts)
	a.addCloser("lobby_redis", rdb.Close)
	a.Lobby = lobby.NewManager(rdb, pvp)

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := pvpxiangqi.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("init pvp repository: %w", err)
		}
		a.Repo = repo
		a.addCloser("pvp_repo", repo.Close)
	} else {
		logger.Info("app_results_in_memory")
		a.Repo = pvpxiangqi.NewMemoryRepository()
	}
	pvp.AttachRepository(a.Repo)
	return nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// RelayHandler serves the relay websocket on /ws plus a health probe.
func (a *App) RelayHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", a.Relay)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"ok","matches":%d,"waiting":%t}`, a.Relay.Active(), a.Relay.Waiting())
	})
	return mux
}

// Shutdown stops the API server and releases every resource, collecting all errors.
func (a *App) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if a.API != nil {
		if err := a.API.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("api: %w", err))
		}
	}
	if err := a.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
