//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/store/memstore"
	"github.com/MrEthical07/fleetAuth/store/redisstore"
)

const (
	testCode     = "1234"
	testPassword = "Secret1!"
)

type storeFactory struct {
	name string
	new  func(t *testing.T) fleetAuth.AccountStore
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{name: "memory", new: func(*testing.T) fleetAuth.AccountStore { return memstore.New() }},
		{name: "redis", new: func(t *testing.T) fleetAuth.AccountStore {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis run failed: %v", err)
			}
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() {
				_ = rdb.Close()
				mr.Close()
			})
			return redisstore.New(rdb)
		}},
	}
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newIntegrationEngine(t *testing.T, store fleetAuth.AccountStore, clock *fixedClock) *fleetAuth.Engine {
	t.Helper()

	cfg := fleetAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	engine, err := fleetAuth.New().
		WithConfig(cfg).
		WithAccountStore(store).
		WithCodeGenerator(fleetAuth.CodeGeneratorFunc(func() (string, error) { return testCode, nil })).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func registerVerified(t *testing.T, engine *fleetAuth.Engine, email string) {
	t.Helper()

	ctx := context.Background()
	if err := engine.Register(ctx, fleetAuth.RegisterRequest{Email: email, Username: "driver", Password: testPassword}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := engine.CheckVerifyCode(ctx, email, testCode); err != nil {
		t.Fatalf("CheckVerifyCode failed: %v", err)
	}
}
