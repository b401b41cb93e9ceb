//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_LastStateEmpty(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, "empty-store", logger)

	_, ok, err := tracker.LastState(context.Background())
	if err != nil {
		t.Fatalf("LastState() error = %v", err)
	}
	if ok {
		t.Error("LastState() reported a state for a store that never recorded one")
	}
}

func TestTracker_Integration_RecordAndRead(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, "abc123", logger)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	recorded := State{
		RemainingCalls: 42,
		Quota:          150,
		Window:         30 * time.Second,
		ObservedAt:     now,
		ResetAt:        now.Add(20 * time.Second),
	}

	if err := tracker.Record(ctx, recorded); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, ok, err := tracker.LastState(ctx)
	if err != nil {
		t.Fatalf("LastState() error = %v", err)
	}
	if !ok {
		t.Fatal("LastState() found no state after Record()")
	}
	if got.RemainingCalls != 42 || got.Quota != 150 || got.Window != 30*time.Second {
		t.Errorf("LastState() = %+v, want %+v", got, recorded)
	}
	if !got.ResetAt.Equal(recorded.ResetAt) {
		t.Errorf("ResetAt = %v, want %v", got.ResetAt, recorded.ResetAt)
	}

	ttl, err := redisClient.TTL(ctx, RedisKeyPrefix+"abc123").Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 20*time.Second {
		t.Errorf("TTL = %v, want within the reset window", ttl)
	}
}

func TestTracker_Integration_UnlimitedOverwrites(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, "abc123", logger)
	ctx := context.Background()

	if err := tracker.Record(ctx, State{RemainingCalls: 1, ObservedAt: time.Now()}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := tracker.Record(ctx, UnlimitedState(time.Now())); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, ok, err := tracker.LastState(ctx)
	if err != nil || !ok {
		t.Fatalf("LastState() = %v, %v", ok, err)
	}
	if !got.Unlimited {
		t.Error("Expected the unlimited state to replace the previous one")
	}
}
