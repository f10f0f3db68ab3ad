package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ludo/internal/app"
	"ludo/internal/bot"
	"ludo/internal/config"
	"ludo/internal/ports"
	"ludo/internal/ports/redisstore"
	"ludo/internal/resume"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	gameConfigPath    = "data/game_config.json"
	botIdentityPath   = "data/bot_identities.json"
	devResumeSecret   = "ludo-dev-resume-secret"
	resumeCachePrefix = "ludo:resume:"
)

// moduleDeps is what the RPCs and every match handler on this node share.
type moduleDeps struct {
	cfg      config.GameConfig
	svc      *app.Service
	sched    *app.Scheduler
	ledger   ports.WagerLedger
	store    ports.MatchStore
	writer   *resume.AsyncWriter
	notifier ports.Notifier
	tickets  *resume.TicketIssuer
	claims   resumeClaims
	matches  matchAPI
	now      func() time.Time
}

// matchAPI is the part of runtime.NakamaModule that starts and reaches matches.
type matchAPI interface {
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
	MatchGet(ctx context.Context, id string) (*api.Match, error)
	MatchSignal(ctx context.Context, id string, data string) (string, error)
}

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig(gameConfigPath); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}
	cfg := config.GetGameConfig()
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		cfg.ApplyEnv(env)
	}
	config.SetGameConfig(cfg)

	if err := bot.LoadIdentities(botIdentityPath); err != nil {
		logger.Warn("InitModule: Could not load bot identities: %v", err)
	}
	bot.ProvisionBots(ctx, nk, logger)

	deps, err := newModuleDeps(cfg, nk, logger)
	if err != nil {
		return err
	}

	if err := RegisterRPCs(initializer, deps); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameLudo, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(deps), nil
	}); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	logger.Info("Ludo Go module loaded.")
	return nil
}

func newModuleDeps(cfg config.GameConfig, nk runtime.NakamaModule, logger runtime.Logger) (*moduleDeps, error) {
	secret := cfg.ResumeSecret
	if secret == "" {
		logger.Warn("InitModule: ludo_resume_secret is not set, using the development secret.")
		secret = devResumeSecret
	}
	tickets, err := resume.NewTicketIssuer(secret)
	if err != nil {
		return nil, err
	}

	var store ports.MatchStore = NewNakamaMatchStore(nk)
	if cfg.RedisURL != "" {
		cached, err := redisstore.Open(cfg.RedisURL, resumeCachePrefix, cfg.ResumeWindow(), store)
		if err != nil {
			return nil, fmt.Errorf("failed to open resume cache: %w", err)
		}
		logger.Info("InitModule: Resume cache enabled.")
		store = cached
	}

	return &moduleDeps{
		cfg:      cfg,
		svc:      app.NewService(nil),
		sched:    app.NewScheduler(),
		ledger:   NewNakamaWagerLedger(nk),
		store:    store,
		writer:   resume.NewAsyncWriter(store, logger),
		notifier: NewNakamaNotifier(nk),
		tickets:  tickets,
		claims:   NewNakamaResumeClaims(nk),
		matches:  nk,
		now:      time.Now,
	}, nil
}
