package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/rolfenpp/ChronoBit-API/internal/config"
	"github.com/rolfenpp/ChronoBit-API/internal/infra/database"
	"github.com/rolfenpp/ChronoBit-API/internal/infra/repository"
	"github.com/rolfenpp/ChronoBit-API/internal/service"
	"github.com/rolfenpp/ChronoBit-API/internal/usecase"
)

// loadDotenv reads .env from the working directory when present.
func loadDotenv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "failed to load .env")
	}
	return nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

type app struct {
	claim    *usecase.ClaimUsecase
	auth     *service.AuthService
	signal   *service.SignalService
	closeFns []func() error
}

func (a *app) Close() {
	for _, fn := range a.closeFns {
		if err := fn(); err != nil {
			slog.Warn("close failed", slog.String("error", err.Error()), slog.String("module", "main"))
		}
	}
}

type identityStore interface {
	usecase.IdentityGateway
	service.IdentityRecorder
}

func newApp(ctx context.Context, conf config.Config) (*app, error) {
	a := &app{}

	var (
		claimRepo usecase.ClaimRepository
		identity  identityStore
	)

	switch conf.Server.Storage {
	case config.StorageMemory:
		slog.Warn("using in-memory storage, claims are lost on restart", slog.String("module", "main"))
		claimRepo = repository.NewMemoryClaimRepository()
		identity = repository.NewMemoryIdentityRepository()
	default:
		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		a.closeFns = append(a.closeFns, sqlDB.Close)

		if err := database.MigratePostgres(db); err != nil {
			a.Close()
			return nil, errors.Wrap(err, "failed to migrate database")
		}

		var mc *memcache.Client
		if conf.Server.MemcachedAddr != "" {
			mc = database.NewMemcached(conf.Server.MemcachedAddr)
			a.closeFns = append(a.closeFns, mc.Close)
		}

		claimRepo = repository.NewClaimRepository(db)
		identity = repository.NewIdentityRepository(db, mc)
	}

	var publisher usecase.ClaimPublisher
	if conf.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err != nil {
			slog.Warn(
				"redis is unreachable, realtime events may be dropped",
				slog.String("error", err.Error()),
				slog.String("module", "main"),
			)
		}
		a.closeFns = append(a.closeFns, rdb.Close)

		a.signal = service.NewSignalService(rdb)
		publisher = a.signal
	}

	a.claim = usecase.NewClaimUsecase(claimRepo, identity, publisher)
	a.auth = service.NewAuthService(authConfig(conf), identity)
	return a, nil
}

func authConfig(conf config.Config) service.AuthConfig {
	return service.AuthConfig{
		Secret:   conf.Auth.JWTSecret,
		Issuer:   conf.Auth.Issuer,
		Audience: conf.Auth.Audience,
	}
}
