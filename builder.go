package goSession

import (
	"errors"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/redisstore"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/reset"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	refreshStore refresh.Store
	resetStore   reset.Store
	directory    UserDirectory
	delivery     ResetDelivery
	auditSink    AuditSink
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs both token stores with client unless explicit stores are set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRefreshStore sets the refresh-token store.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

// WithResetStore sets the password-reset store.
func (b *Builder) WithResetStore(store reset.Store) *Builder {
	b.resetStore = store
	return b
}

// WithUserDirectory sets the account directory used by login and reset.
func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

// WithResetDelivery sets the out-of-band channel for reset tokens.
func (b *Builder) WithResetDelivery(d ResetDelivery) *Builder {
	b.delivery = d
	return b
}

// WithAuditSink sets the sink behind the audit dispatcher. Audit.Enabled must
// also be true for events to flow.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock overrides the time source. Tests use it to step past expiries.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	refreshStore := b.refreshStore
	resetStore := b.resetStore
	if b.redis != nil {
		if refreshStore == nil {
			refreshStore = redisstore.NewRefreshStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.RetentionTTL)
		}
		if resetStore == nil {
			resetStore = redisstore.NewResetStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.RetentionTTL)
		}
	}
	if refreshStore == nil {
		return nil, errors.New("refresh store or redis client required")
	}
	if cfg.PasswordReset.Enabled && resetStore == nil {
		return nil, errors.New("PasswordReset requires a reset store or redis client")
	}

	ph, err := NewPasswordHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:       cfg,
		refreshStore: refreshStore,
		resetStore:   resetStore,
		directory:    b.directory,
		delivery:     b.delivery,
		passwordHash: ph,
		jwtManager:   jm,
		now:          now,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

// NewPasswordHasher builds the Argon2id hasher described by cfg. Account
// stores that verify passwords outside the engine should use the same
// parameters.
func NewPasswordHasher(cfg PasswordConfig) (*password.Argon2, error) {
	return password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MinPasswordBytes: cfg.MinLength,
		MaxPasswordBytes: cfg.MaxLength,
	})
}
