// Command fleetauth-loadtest drives concurrent wrong-password logins against a fleetAuth
// engine and checks that every account enters its lock exactly once.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/store/memstore"
	"github.com/MrEthical07/fleetAuth/store/redisstore"
)

const (
	seedPassword  = "correct-horse-1"
	wrongPassword = "wrong-password"
	seedCode      = "1234"
)

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of tenant accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		attempts    = flag.Int("attempts", 10, "wrong-password logins per account in the contention phase")
		ops         = flag.Int("ops", 2000, "successful logins in the login phase")
		storeKind   = flag.String("store", "memory", "account store: memory or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *attempts <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, attempts, and ops must be > 0")
		os.Exit(2)
	}

	store, cleanup, err := newStore(*storeKind, *redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store init failed: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := fleetAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	engine, err := fleetAuth.New().
		WithConfig(cfg).
		WithAccountStore(store).
		WithCodeGenerator(fleetAuth.CodeGeneratorFunc(func() (string, error) { return seedCode, nil })).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine init failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	contended := emails("contend", *accounts)
	healthy := emails("login", *accounts)

	fmt.Printf("seeding %d accounts...\n", 2*(*accounts))
	startSeed := time.Now()
	for _, email := range append(append([]string(nil), contended...), healthy...) {
		if err := seed(ctx, engine, email); err != nil {
			fmt.Fprintf(os.Stderr, "seed %s failed: %v\n", email, err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	contention := runContentionPhase(ctx, engine, contended, *attempts, *concurrency)
	loginStats := runLoginPhase(ctx, engine, healthy, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("contention", contention.stats)
	printStats("login", loginStats)
	fmt.Printf("locks entered=%d rejected while locked=%d incorrect=%d\n",
		contention.locks, contention.rejected, contention.incorrect)

	wantLocks := 0
	if *attempts >= cfg.Lockout.MaxAttempts {
		wantLocks = len(contended)
	}
	ok := true
	if contention.locks != int64(wantLocks) {
		fmt.Fprintf(os.Stderr, "INVARIANT VIOLATION: expected %d lock entries, got %d\n", wantLocks, contention.locks)
		ok = false
	}
	for email, n := range contention.perAccount {
		if n > 1 {
			fmt.Fprintf(os.Stderr, "INVARIANT VIOLATION: %s entered its lock %d times\n", email, n)
			ok = false
		}
	}
	if got := engine.MetricsSnapshot().Counters[fleetAuth.MetricLoginLockEntered]; got != uint64(wantLocks) {
		fmt.Fprintf(os.Stderr, "INVARIANT VIOLATION: lock metric %d, expected %d\n", got, wantLocks)
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
	fmt.Println("lockout invariant held")
}

func newStore(kind, addr string) (fleetAuth.AccountStore, func(), error) {
	switch kind {
	case "memory":
		return memstore.New(), func() {}, nil
	case "redis":
	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}

	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return redisstore.New(client, redisstore.WithPrefix("fleetauth-loadtest")), func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return redisstore.New(client, redisstore.WithPrefix("fleetauth-loadtest")), func() { _ = client.Close() }, nil
}

func emails(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d-%d@loadtest.local", prefix, time.Now().UnixNano(), i)
	}
	return out
}

func seed(ctx context.Context, engine *fleetAuth.Engine, email string) error {
	err := engine.Register(ctx, fleetAuth.RegisterRequest{
		Email:    email,
		Username: "driver",
		Password: seedPassword,
	})
	if err != nil {
		return err
	}
	return engine.CheckVerifyCode(ctx, email, seedCode)
}

type contentionResult struct {
	stats      phaseStats
	locks      int64
	rejected   int64
	incorrect  int64
	perAccount map[string]int
}

func runContentionPhase(ctx context.Context, engine *fleetAuth.Engine, accounts []string, attempts, concurrency int) contentionResult {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		res       = contentionResult{perAccount: make(map[string]int)}
		total     = len(accounts) * attempts
		latencies = make([]time.Duration, 0, total)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= total {
					return
				}
				email := accounts[i%len(accounts)]

				t0 := time.Now()
				_, err := engine.Login(ctx, email, wrongPassword)
				d := time.Since(t0)

				var ae *fleetAuth.AttemptError
				switch {
				case errors.Is(err, fleetAuth.ErrTemporarilyLocked):
					atomic.AddInt64(&res.rejected, 1)
				case errors.As(err, &ae) && errors.Is(err, fleetAuth.ErrIncorrectPassword):
					atomic.AddInt64(&res.incorrect, 1)
					if !ae.LockedUntil.IsZero() {
						atomic.AddInt64(&res.locks, 1)
						mu.Lock()
						res.perAccount[email]++
						mu.Unlock()
					}
				default:
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	res.stats = computeStats(time.Since(start), latencies, failures)
	return res
}

func runLoginPhase(ctx context.Context, engine *fleetAuth.Engine, accounts []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				email := accounts[r.Intn(len(accounts))]
				t0 := time.Now()
				token, err := engine.Login(ctx, email, seedPassword)
				if err == nil {
					_, err = engine.Authenticate(ctx, token)
				}
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
