package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/eshop/internal/health"
	"github.com/vladislavdragonenkov/eshop/internal/storage/memory"
	"github.com/vladislavdragonenkov/eshop/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/eshop/internal/storage/redis"
)

// outboxStaleAfter — возраст неотправленного события, после которого
// /healthz сообщает о деградации доставки.
const outboxStaleAfter = 5 * time.Minute

// runtimeDependencies — хранилища, выбранные по конфигурации.
type runtimeDependencies struct {
	goods          domain.GoodRepository
	orders         domain.OrderRepository
	users          domain.UserRepository
	feedback       domain.FeedbackRepository
	attachments    domain.AttachmentRepository
	timeline       domain.TimelineRepository
	outbox         domain.OutboxRepository
	idempotency    domain.IdempotencyRepository
	storageChecker healthcheck.Checker
	redisChecker   healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилища согласно cfg.StorageDriver
// и, если задан RedisAddr, переносит ключи идемпотентности в Redis.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	var (
		deps *runtimeDependencies
		err  error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		deps = initMemoryDependencies()
	case StorageDriverPostgres:
		deps, err = initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		if err := attachRedis(ctx, deps, cfg, logger); err != nil {
			_ = deps.close()
			return nil, err
		}
	}

	return deps, nil
}

func initMemoryDependencies() *runtimeDependencies {
	return &runtimeDependencies{
		goods:       memory.NewGoodRepository(),
		orders:      memory.NewOrderRepository(),
		users:       memory.NewUserRepository(),
		feedback:    memory.NewFeedbackRepository(),
		attachments: memory.NewAttachmentRepository(),
		timeline:    memory.NewTimelineRepository(),
		outbox:      memory.NewOutboxRepository(),
		idempotency: memory.NewIdempotencyRepository(),
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("postgres storage requires ESHOP_POSTGRES_DSN")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	return &runtimeDependencies{
		goods:       postgres.NewGoodRepository(store),
		orders:      postgres.NewOrderRepository(store),
		users:       postgres.NewUserRepository(store),
		feedback:    postgres.NewFeedbackRepository(store),
		attachments: postgres.NewAttachmentRepository(store),
		timeline:    postgres.NewTimelineRepository(store),
		outbox:      postgres.NewOutboxRepository(store),
		idempotency: postgres.NewIdempotencyRepository(store),
		storageChecker: healthcheck.NewChecker("postgres", store.Ping),
		closeFn: store.Close,
	}, nil
}

func attachRedis(ctx context.Context, deps *runtimeDependencies, cfg Config, logger *log.Entry) error {
	rdb, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}

	deps.idempotency = redisstore.NewIdempotencyRepository(rdb)
	deps.redisChecker = healthcheck.NewChecker("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	storageClose := deps.closeFn
	deps.closeFn = func() error {
		return errors.Join(rdb.Close(), callClose(storageClose))
	}

	logger.WithField("addr", cfg.RedisAddr).Info("idempotency keys are stored in redis")
	return nil
}

// seedUsers создаёт учётные записи из конфигурации; существующие пропускаются.
func seedUsers(users domain.UserRepository, entries []string, logger *log.Entry) error {
	seed, err := ParseSeedUsers(entries)
	if err != nil {
		return err
	}
	for _, user := range seed {
		if _, err := users.Create(user); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("seed user %s: %w", user.Email, err)
		}
		logger.WithFields(log.Fields{"login": user.Email, "role": user.Role}).Info("user seeded")
	}
	return nil
}

func (d *runtimeDependencies) close() error {
	if d == nil {
		return nil
	}
	return callClose(d.closeFn)
}

func callClose(fn func() error) error {
	if fn == nil {
		return nil
	}
	return fn()
}

// outboxBacklogChecker сообщает о деградации, если старейшее событие outbox
// ждёт отправки дольше staleAfter.
func outboxBacklogChecker(repo domain.OutboxRepository, staleAfter time.Duration) healthcheck.Checker {
	return healthcheck.NewChecker("outbox", func(context.Context) error {
		stats, err := repo.Stats()
		if err != nil {
			return fmt.Errorf("outbox stats: %w", err)
		}
		if age := stats.OldestAge(time.Now()); age > staleAfter {
			return fmt.Errorf("%d pending events, oldest waits %s", stats.PendingCount, age.Round(time.Second))
		}
		return nil
	}, healthcheck.Optional())
}
