package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/ai"
	"github.com/spigell/joblens/internal/ai/gemini"
	"github.com/spigell/joblens/internal/cache"
	"github.com/spigell/joblens/internal/embedcache"
	"github.com/spigell/joblens/internal/logger"
	"github.com/spigell/joblens/internal/postgres"
	"github.com/spigell/joblens/internal/preferences"
	"github.com/spigell/joblens/internal/secrets"
	"github.com/spigell/joblens/internal/services"
	"github.com/spigell/joblens/internal/session"
	"github.com/spigell/joblens/internal/supabase"
)

const (
	backendSupabase = "supabase"
	backendPostgres = "postgres"
)

// env is what every command starts from.
type env struct {
	ctx    context.Context
	logger *zap.Logger
	config *Config
}

func newEnv() *env {
	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}
	if config.Services == nil {
		config.Services = &ServicesConfig{}
	}
	if config.Supabase == nil {
		config.Supabase = &SupabaseConfig{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}
	if config.Postgres == nil {
		config.Postgres = &PostgresConfig{}
	}
	if config.Redis == nil {
		config.Redis = &RedisConfig{}
	}
	if config.Cache == nil {
		config.Cache = &CacheConfig{}
	}
	if config.Match == nil {
		config.Match = &MatchConfig{}
	}
	if config.Gemini == nil {
		config.Gemini = &GeminiConfig{}
	}

	return &env{ctx: context.Background(), logger: logger, config: config}
}

func (e *env) sessionFile() string {
	if path := strings.TrimSpace(e.config.SessionFile); path != "" {
		return path
	}
	return session.DefaultPath()
}

// session returns the stored session, renewing it when the access token ran
// out, or stops the command when nobody is signed in.
func (e *env) session() *session.Session {
	sess, err := session.Load(e.sessionFile())
	if err != nil {
		e.logger.Fatal("loading session", zap.Error(err))
	}

	if sess.Refreshable() {
		renewed, err := renewSession(e.ctx, e.supabase(), e.sessionFile(), sess)
		if err != nil {
			e.logger.Warn("session refresh failed", zap.Error(err))
		} else {
			sess = renewed
		}
	}

	if err := sess.Require(); err != nil {
		e.logger.Fatal("not signed in",
			zap.Error(err),
			zap.String("hint", fmt.Sprintf("run '%s login' first", app)),
		)
	}

	return sess
}

type sessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*session.Session, error)
}

// renewSession exchanges the refresh token of an expired session and writes
// the result back to path.
func renewSession(ctx context.Context, r sessionRefresher, path string, sess *session.Session) (*session.Session, error) {
	renewed, err := r.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, err
	}

	if renewed.UserID == "" {
		renewed.UserID = sess.UserID
	}
	if renewed.Email == "" {
		renewed.Email = sess.Email
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = sess.RefreshToken
	}

	if err := session.Save(path, renewed); err != nil {
		return nil, fmt.Errorf("saving refreshed session: %w", err)
	}

	return renewed, nil
}

// optionalSession returns the stored session when it is still usable.
func (e *env) optionalSession() *session.Session {
	sess, err := session.Load(e.sessionFile())
	if err != nil {
		e.logger.Debug("ignoring unreadable session", zap.Error(err))
		return nil
	}
	if sess.Refreshable() {
		renewed, err := renewSession(e.ctx, e.supabase(), e.sessionFile(), sess)
		if err != nil {
			e.logger.Debug("ignoring expired session", zap.Error(err))
			return nil
		}
		sess = renewed
	}
	if sess.Require() != nil {
		return nil
	}
	return sess
}

func (e *env) supabase() *supabase.Client {
	cfg := e.config.Supabase

	anonKey, err := secrets.Load(secrets.Source{
		Name:  "supabase anon key",
		Value: cfg.AnonKey,
		File:  cfg.AnonKeyFile,
		Env:   "SUPABASE_ANON_KEY",
	})
	if err != nil {
		e.logger.Fatal("loading supabase anon key",
			zap.Error(err),
			zap.String("hint", "set SUPABASE_ANON_KEY or the 'supabase.anon-key-file' key in the configuration file"),
		)
	}

	client, err := supabase.New(cfg.URL, anonKey, e.logger)
	if err != nil {
		e.logger.Fatal("creating supabase client", zap.Error(err), zap.String("hint", "set SUPABASE_URL"))
	}

	if cfg.Table != "" {
		client.Table = cfg.Table
	}
	if ua := e.config.Services.UserAgent; ua != "" {
		client.UserAgent = ua
	}

	return client
}

// store builds the preference store over the configured backend. The
// returned func releases the connections it opened.
func (e *env) store() (*preferences.Store, func()) {
	var (
		backend preferences.Backend
		closers []func()
	)

	switch strings.ToLower(strings.TrimSpace(e.config.Store.Backend)) {
	case "", backendSupabase:
		backend = e.supabase()
	case backendPostgres:
		pool, err := postgres.NewPool(e.ctx, e.config.Postgres.URL)
		if err != nil {
			e.logger.Fatal("connecting to postgres", zap.Error(err), zap.String("hint", "set DATABASE_URL"))
		}
		closers = append(closers, pool.Close)

		pg := postgres.New(pool, e.config.Supabase.Table)
		if err := pg.EnsureSchema(e.ctx); err != nil {
			e.logger.Fatal("preparing preference table", zap.Error(err))
		}
		backend = pg
	default:
		e.logger.Fatal("unsupported store backend", zap.String("backend", e.config.Store.Backend))
	}

	var prefsCache preferences.Cache
	if url := strings.TrimSpace(e.config.Redis.URL); url != "" {
		rdb, err := cache.Connect(e.ctx, url)
		if err != nil {
			e.logger.Warn("preference cache disabled", zap.Error(err))
		} else {
			closers = append(closers, func() { rdb.Close() })
			prefsCache = cache.New(rdb, e.config.Redis.TTL)
		}
	}

	return preferences.NewStore(backend, prefsCache, e.logger), func() {
		for _, c := range closers {
			c()
		}
	}
}

func (e *env) withUserAgent(c *services.Client) {
	if ua := e.config.Services.UserAgent; ua != "" {
		c.UserAgent = ua
	}
}

func (e *env) matcher(token string) *services.Matcher {
	m := services.NewMatcher(e.config.Services.Matcher, token, e.logger)
	e.withUserAgent(m.Client)
	return m
}

func (e *env) embedder(token string) *services.Embedder {
	cfg := e.config.Services.Embedder
	emb := services.NewEmbedder(cfg.Endpoint, cfg.UploadTimeout, token, e.logger)
	e.withUserAgent(emb.Client)
	return emb
}

func (e *env) scraper(token string) *services.Scraper {
	s := services.NewScraper(e.config.Services.Scraper, token, e.logger)
	e.withUserAgent(s.Client)
	return s
}

func (e *env) gemini() ai.Embedder {
	cfg := e.config.Gemini

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		e.logger.Fatal("loading gemini api key",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE or the 'gemini.api-key-file' key in the configuration file"),
		)
	}

	embedder, err := gemini.NewEmbedder(e.ctx, apiKey, cfg.Model, cfg.Dimensions, e.logger)
	if err != nil {
		e.logger.Fatal("creating gemini embedder", zap.Error(err))
	}

	return embedder
}

// textEmbedder returns the provider that embeds plain text.
func (e *env) textEmbedder(provider, token string) ai.Embedder {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case providerService:
		return e.embedder(token)
	case providerGemini:
		embedder := e.gemini()
		e.logger.Warn("gemini vectors only match job collections embedded with the same model", zap.String("model", embedder.Model()))
		return embedder
	default:
		e.logger.Fatal("unsupported embedding provider", zap.String("provider", provider))
		return nil
	}
}

func (e *env) embeddings() *embedcache.Cache {
	path := strings.TrimSpace(e.config.Cache.Path)
	if path == "" {
		path = embedcache.DefaultPath()
	}

	c, err := embedcache.Open(path)
	if err != nil {
		e.logger.Fatal("opening embedding cache", zap.Error(err))
	}

	return c
}
