package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/rechart/rechart/internal/api"
	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/core/service"
	"github.com/rechart/rechart/internal/infrastructure/codec"
	"github.com/rechart/rechart/internal/infrastructure/db"
	"github.com/rechart/rechart/internal/infrastructure/db/mongo"
	"github.com/rechart/rechart/internal/infrastructure/db/redis"
	"github.com/rechart/rechart/internal/infrastructure/identity"
	"github.com/rechart/rechart/internal/pkg/config"
	"github.com/rechart/rechart/pkg/logger"
)

// app holds the wired client core for one command invocation.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	stores  service.Stores
	session *service.AuthSession
	signin  *service.SignInService
	client  *api.Client

	opened []*db.Opened
}

func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFrom(cmd.Context(), envconfig.OsLookuper())
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load configuration: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Output:  cmd.ErrOrStderr(),
		Service: "rechart",
	})
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	opts := db.Options{
		Redis: redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, Timeout: 3 * time.Second},
		Mongo: mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, Timeout: 3 * time.Second},
	}
	local := db.Open(ctx, domain.NamespaceLocal, cfg.Storage.LocalBackend, opts, log)
	session := db.Open(ctx, domain.NamespaceSession, cfg.Storage.SessionBackend, opts, log)

	gz := codec.NewGzip()
	stores := service.Stores{
		Local:   service.NewStore(domain.NamespaceLocal, local.Store, gz, log),
		Session: service.NewStore(domain.NamespaceSession, session.Store, gz, log),
	}

	sdk := identity.New(ctx, identity.Config{BaseURL: cfg.Identity.URL, APIKey: cfg.Identity.APIKey}, stores.Local, log)
	auth := service.NewAuthSession(sdk, log)
	settings := domain.ActionCodeSettings{
		URL:             cfg.Identity.ContinueURL,
		HandleCodeInApp: true,
		LinkDomain:      cfg.Identity.LinkDomain,
	}
	signin := service.NewSignInService(sdk, auth, stores.Local, settings, log)

	a := &app{
		cfg:     cfg,
		log:     log,
		stores:  stores,
		session: auth,
		signin:  signin,
		opened:  []*db.Opened{local, session},
	}

	client, err := api.NewClient(
		api.ClientConfig{BaseURL: cfg.API.URL, UserAgent: cfg.API.UserAgent},
		auth,
		log,
		api.WithHandledErrorHook(a.onHandledError),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client
	return a, nil
}

// onHandledError signs the user out when the server no longer accepts the
// session.
func (a *app) onHandledError(ctx context.Context, err *api.ResponseError) {
	if err.Class != domain.ClassNotAuthenticated || err.Response == nil {
		return
	}
	if err.Response.Request.Config.Header.Get(domain.HeaderAuthorization) == "" {
		return
	}
	a.log.Warn().Msg("session time out, please sign in again")
	if serr := a.signin.SignOut(ctx); serr != nil {
		a.log.Error().Err(serr).Msg("sign out after 401 failed")
	}
}

// resume restores the principal of a previous sign-in, if there is one.
func (a *app) resume(ctx context.Context) *domain.AuthUserInfo {
	info, err := a.signin.Resume(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("no resumable session")
		return nil
	}
	return info
}

func (a *app) Close() {
	for _, o := range a.opened {
		if err := o.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close storage")
		}
	}
}

// withApp loads configuration, wires the client core and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
