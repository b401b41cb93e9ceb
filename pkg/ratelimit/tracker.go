package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyPrefix prefixes the key holding the last observed State of a store.
const RedisKeyPrefix = "bigcommerce:rate_limit:"

// snapshotTTL bounds how long a published State stays readable when the
// response carried no reset time.
const snapshotTTL = 5 * time.Minute

// Prometheus metrics for rate limit tracking.
var (
	callsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bigcommerce_rate_limit_remaining_calls",
		Help: "Number of calls remaining in the current BigCommerce rate limit window",
	})

	unlimitedResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bigcommerce_rate_limit_unlimited_responses_total",
		Help: "Total number of responses that reported no call budget",
	})

	exhaustedResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bigcommerce_rate_limit_exhausted_total",
		Help: "Total number of responses that reported an exhausted call budget",
	})
)

// Tracker records every observed State for observability.
// When a Redis client is configured the latest State of the store is
// published so that other processes (and the CLI budget command) can read it.
type Tracker struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, storeHash string, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		key:    RedisKeyPrefix + storeHash,
		logger: logger,
	}
}

// Record logs and exports the state and publishes it to Redis if configured.
// Publishing failures are returned but never alter the state itself.
func (t *Tracker) Record(ctx context.Context, state State) error {
	if state.Unlimited {
		unlimitedResponsesTotal.Inc()
		t.logger.Debug().Msg("Rate limit not reported - endpoint is unlimited")
	} else {
		callsRemaining.Set(float64(state.RemainingCalls))

		switch {
		case state.IsExhausted():
			exhaustedResponsesTotal.Inc()
			t.logger.Warn().
				Int("remaining_calls", state.RemainingCalls).
				Dur("reset_in", state.TimeUntilReset()).
				Msg("Rate limit exhausted - next call waits for window reset")
		case state.IsLow():
			t.logger.Info().
				Int("remaining_calls", state.RemainingCalls).
				Int("quota", state.Quota).
				Msg("Rate limit low")
		default:
			t.logger.Debug().
				Int("remaining_calls", state.RemainingCalls).
				Int("quota", state.Quota).
				Msg("Rate limit state updated")
		}
	}

	if t.redis == nil {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}

	ttl := state.TimeUntilReset()
	if ttl <= 0 {
		ttl = snapshotTTL
	}

	if err := t.redis.Set(ctx, t.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	return nil
}

// LastState reads the last published State from Redis.
// The boolean is false when no state has been published or it expired.
func (t *Tracker) LastState(ctx context.Context) (State, bool, error) {
	if t.redis == nil {
		return State{}, false, errors.New("rate limit tracker has no redis client")
	}

	data, err := t.redis.Get(ctx, t.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("get rate limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, false, fmt.Errorf("parse rate limit state: %w", err)
	}

	return state, true, nil
}
