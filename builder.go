package rbacauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mnaimfaizy/go-rbac-auth/internal/rate"
	"github.com/mnaimfaizy/go-rbac-auth/password"
	"github.com/mnaimfaizy/go-rbac-auth/revocation"
	"github.com/mnaimfaizy/go-rbac-auth/token"
)

// Builder assembles an [Engine]. A builder is single-use: Build succeeds at
// most once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	hierarchy HierarchySource
	notifier  Notifier
	auditSink AuditSink

	revocations revocation.Store

	built bool
}

// New returns a builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the revocation ledger and the
// sliding attempt window.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithHierarchySource(src HierarchySource) *Builder {
	b.hierarchy = src
	return b
}

// WithNotifier supplies the out-of-band delivery channel for reset and
// verification tokens. Optional; without it the request operations fail.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRevocationStore overrides the default Redis-backed revocation ledger.
func (b *Builder) WithRevocationStore(s revocation.Store) *Builder {
	b.revocations = s
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the subsystems, and loads the
// initial permission hierarchy.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.hierarchy == nil {
		return nil, errors.New("hierarchy source required")
	}
	if b.redis == nil && b.revocations == nil {
		return nil, errors.New("redis client required")
	}
	if b.redis == nil && cfg.Attempts.MaxAttempts > 0 {
		return nil, errors.New("attempt throttle requires redis client")
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		hierarchy: b.hierarchy,
		notifier:  b.notifier,
		now:       time.Now,
	}

	engine.revocations = b.revocations
	if engine.revocations == nil {
		engine.revocations = revocation.NewRedisStore(b.redis, cfg.Revocation.RedisPrefix)
	}
	if cfg.Attempts.MaxAttempts > 0 {
		engine.attempts = rate.New(b.redis, rate.Config{
			Window: cfg.Attempts.Window,
			Prefix: cfg.Attempts.RedisPrefix,
		})
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		Pepper:      cloneBytes(cfg.Password.Pepper),
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// The unknown-user burn must cost the same as a real verification, so
	// the dummy hash is produced by the configured hasher, not a constant.
	engine.dummyHash, err = hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	tm, err := token.NewManager(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Secret:        cloneBytes(cfg.Token.Secret),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm

	if err := engine.ReloadHierarchy(context.Background()); err != nil {
		return nil, err
	}

	b.built = true

	return engine, nil
}
