package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
	"github.com/rthunborg/sunnyseat-sub000/internal/resilience"
)

// DefaultValkeyTTL matches the precompute record lifetime so the shared
// tier never outlives the data underneath it.
const DefaultValkeyTTL = 48 * time.Hour

// ValkeyTier is the shared cache layer. All commands run behind a circuit
// breaker so a struggling Valkey degrades to misses instead of stalling
// request handling.
type ValkeyTier struct {
	client  valkey.Client
	prefix  string
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]

	counters
}

// ValkeyTierConfig holds configuration for the shared tier.
type ValkeyTierConfig struct {
	Client valkey.Client

	// Prefix namespaces keys (default "sunnyseat").
	Prefix string

	// TTL bounds entry lifetime (default DefaultValkeyTTL).
	TTL time.Duration

	// Breaker overrides the default circuit breaker configuration.
	Breaker *resilience.CircuitBreakerConfig
}

// NewValkeyTier wraps a Valkey client as a cache tier.
func NewValkeyTier(cfg ValkeyTierConfig) *ValkeyTier {
	if cfg.Prefix == "" {
		cfg.Prefix = "sunnyseat"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultValkeyTTL
	}
	breakerCfg := resilience.DefaultCircuitBreakerConfig("valkey-cache")
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}
	return &ValkeyTier{
		client:  cfg.Client,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		breaker: resilience.NewCircuitBreaker[[]byte](breakerCfg),
	}
}

func (t *ValkeyTier) Name() string { return "valkey" }

func (t *ValkeyTier) Get(ctx context.Context, key Key) (*exposure.PatioSunExposure, bool, error) {
	payload, err := t.breaker.Execute(func() ([]byte, error) {
		resp := t.client.Do(ctx, t.client.B().Get().Key(t.storageKey(key)).Build())
		b, err := resp.AsBytes()
		if err != nil {
			if valkey.IsValkeyNil(err) {
				return nil, nil
			}
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		t.errors.Add(1)
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}
	if payload == nil {
		t.misses.Add(1)
		return nil, false, nil
	}

	var value exposure.PatioSunExposure
	if err := json.Unmarshal(payload, &value); err != nil {
		t.errors.Add(1)
		return nil, false, fmt.Errorf("decode cached entry %s: %w", key, err)
	}
	t.hits.Add(1)
	return &value, true, nil
}

func (t *ValkeyTier) Set(ctx context.Context, key Key, value *exposure.PatioSunExposure) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	_, err = t.breaker.Execute(func() ([]byte, error) {
		cmd := t.client.B().Set().
			Key(t.storageKey(key)).
			Value(valkey.BinaryString(payload)).
			Ex(t.ttl).
			Build()
		return nil, t.client.Do(ctx, cmd).Error()
	})
	if err != nil {
		t.errors.Add(1)
		return fmt.Errorf("valkey set: %w", err)
	}
	t.sets.Add(1)
	return nil
}

func (t *ValkeyTier) Delete(ctx context.Context, keys []Key) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	storageKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		storageKeys = append(storageKeys, t.storageKey(key))
	}

	var deleted int64
	_, err := t.breaker.Execute(func() ([]byte, error) {
		resp := t.client.Do(ctx, t.client.B().Del().Key(storageKeys...).Build())
		n, err := resp.AsInt64()
		if err != nil {
			return nil, err
		}
		deleted = n
		return nil, nil
	})
	if err != nil {
		t.errors.Add(1)
		return 0, fmt.Errorf("valkey del: %w", err)
	}
	return int(deleted), nil
}

func (t *ValkeyTier) Ping(ctx context.Context) error {
	_, err := t.breaker.Execute(func() ([]byte, error) {
		return nil, t.client.Do(ctx, t.client.B().Ping().Build()).Error()
	})
	return err
}

func (t *ValkeyTier) Writable() bool { return true }

func (t *ValkeyTier) Metrics() TierMetrics { return t.snapshot(t.Name()) }

func (t *ValkeyTier) storageKey(key Key) string {
	return t.prefix + ":" + key.String()
}
