// Command uitsmijter-server runs the multi-tenant OAuth 2.0/OIDC
// authorization server: it loads the tenant/client registry, wires every
// collaborator internal/engine depends on, and serves internal/httpapi's
// gin router with the teacher's graceful-shutdown convention.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/uitsmijter/uitsmijter/internal/codes"
	"github.com/uitsmijter/uitsmijter/internal/config"
	"github.com/uitsmijter/uitsmijter/internal/engine"
	"github.com/uitsmijter/uitsmijter/internal/httpapi"
	"github.com/uitsmijter/uitsmijter/internal/logger"
	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/ratelimit"
	"github.com/uitsmijter/uitsmijter/internal/refresh"
	"github.com/uitsmijter/uitsmijter/internal/registry"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/store/redisstore"
	"github.com/uitsmijter/uitsmijter/internal/sweeper"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
	"github.com/uitsmijter/uitsmijter/internal/validatorfactory"
)

// storeCallTimeout bounds every call the engine makes to a Redis-backed
// store, so a stalled Redis never hangs an /authorize or /token request
// indefinitely.
const storeCallTimeout = 3 * time.Second

func main() {
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	if cfg.SigningSecret == "" {
		log.Fatal().Msg("SIGNING_SECRET must be set")
	}

	reg := registry.New()
	if err := reg.LoadFile(cfg.RegistryPath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.RegistryPath).Msg("failed to load tenant/client registry")
	}
	log.Info().Str("path", cfg.RegistryPath).Msg("registry loaded")

	resolver, err := buildValidatorResolver(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tenant validators")
	}

	sessions := session.NewManager([]byte(cfg.CookieSecret), cfg.SessionTTL)
	tokens := token.NewManager([]byte(cfg.SigningSecret), cfg.BaseURL)

	codeStore, refreshStore, sw, closeStores := buildStores(cfg, log)
	defer closeStores()
	if sw != nil {
		sw.Start()
		defer sw.Stop()
	}

	eng := engine.New(engine.Deps{
		Registry:        reg,
		Validators:      resolver,
		Sessions:        sessions,
		Codes:           codeStore,
		Refresh:         refreshStore,
		Tokens:          tokens,
		ChallengeSecret: []byte(cfg.SigningSecret),
	})

	router := httpapi.NewRouter(&httpapi.Server{
		Engine:       eng,
		Registry:     reg,
		BaseURL:      cfg.BaseURL,
		LoginLimiter: ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst),
		TokenLimiter: ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("uitsmijter listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	} else {
		log.Info().Msg("server stopped gracefully")
	}
}

// buildValidatorResolver constructs every tenant's credential validator
// up front: OIDC discovery and SAML metadata fetches are real I/O that
// must happen once at startup, not per login request (spec §4.4).
func buildValidatorResolver(reg *registry.Registry) (*validator.Resolver, error) {
	resolver := validator.NewResolver()
	for _, name := range reg.TenantNames() {
		tenant, err := reg.LookupTenantByName(name)
		if err != nil {
			return nil, fmt.Errorf("registry: resolve tenant %s: %w", name, err)
		}
		v, err := validatorfactory.Build(context.Background(), tenant)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", name, err)
		}
		resolver.Register(tenant.Name, v, validator.DefaultConcurrency)
	}
	return resolver, nil
}

// buildStores wires the in-memory or Redis-backed code/refresh stores
// per spec §4.6/§4.7, depending on REDIS_ADDR. Only the in-memory stores
// need a sweeper; Redis reclaims expired keys via their own TTL, so the
// returned *sweeper.Sweeper is nil on that path.
func buildStores(cfg config.Config, log *zerolog.Logger) (engine.CodeStore, engine.RefreshStore, *sweeper.Sweeper, func()) {
	if !cfg.RedisEnabled() {
		codeStore := codes.NewStore()
		refreshStore := refresh.NewStore()
		sw, err := sweeper.New("", codeStore, refreshStore)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build sweeper")
		}
		return codeStore, refreshStore, sw, func() {}
	}

	host, port, err := net.SplitHostPort(cfg.RedisAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("invalid REDIS_ADDR")
	}
	client, err := redisstore.NewClient(redisstore.Config{
		Host:     host,
		Port:     port,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Enabled:  true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("using redis-backed code/refresh stores")

	codeStore := redisCodeStore{redisstore.NewCodeStore(client)}
	refreshStore := redisRefreshStore{redisstore.NewRefreshStore(client)}
	return codeStore, refreshStore, nil, func() { _ = client.Close() }
}

// redisCodeStore adapts the context-taking redisstore.CodeStore to
// internal/engine.CodeStore's context-free signature, since the engine
// is written against whichever store backs it without caring that one
// backend happens to need a context for its network calls.
type redisCodeStore struct{ s *redisstore.CodeStore }

func (r redisCodeStore) Put(code string, rec *model.AuthorizationCode) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := r.s.Put(ctx, code, rec); err != nil {
		logger.Engine().Error().Err(err).Msg("redis code store put failed")
	}
}

func (r redisCodeStore) Consume(code string) (*model.AuthorizationCode, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	return r.s.Consume(ctx, code)
}

func (r redisCodeStore) MarkFamily(code, familyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := r.s.MarkFamily(ctx, code, familyID); err != nil {
		logger.Engine().Error().Err(err).Msg("redis code store mark_family failed")
	}
}

func (r redisCodeStore) FamilyOf(code string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	return r.s.FamilyOf(ctx, code)
}

// redisRefreshStore adapts redisstore.RefreshStore the same way.
type redisRefreshStore struct{ s *redisstore.RefreshStore }

func (r redisRefreshStore) PutInitial(id string, rec *model.RefreshToken) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := r.s.PutInitial(ctx, id, rec); err != nil {
		logger.Engine().Error().Err(err).Msg("redis refresh store put_initial failed")
	}
}

func (r redisRefreshStore) Rotate(tokenID, newID string) (*model.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	return r.s.Rotate(ctx, tokenID, newID)
}

func (r redisRefreshStore) RevokeFamily(familyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := r.s.RevokeFamily(ctx, familyID); err != nil {
		logger.Engine().Error().Err(err).Msg("redis refresh store revoke_family failed")
	}
}

func (r redisRefreshStore) Get(tokenID string) (*model.RefreshToken, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	return r.s.Get(ctx, tokenID)
}
