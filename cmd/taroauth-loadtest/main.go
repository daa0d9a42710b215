// Command taroauth-loadtest drives concurrent logins, session validations and
// a lockout race against an in-process engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const loadPassword = "load-pass-1"

func main() {
	var (
		users       = flag.Int("users", 200, "number of accounts to register")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "validate operations")
		racers      = flag.Int("racers", 32, "concurrent wrong-password attempts in the lockout race")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.Open(ctx, store.Config{Driver: store.DriverSQLite, DSN: ":memory:", Logger: quiet})
	if err != nil {
		fmt.Fprintf(os.Stderr, "store open failed: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	cfg := taroAuth.DefaultConfig()
	cfg.Cache.Prefix = fmt.Sprintf("loadtest_%d", time.Now().UnixNano())
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 1
	cfg.Audit.Enabled = false

	engine, err := taroAuth.New().WithConfig(cfg).WithRedis(client).WithStore(st).WithLogger(quiet).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("registering %d users...\n", *users)
	startSeed := time.Now()
	names := make([]string, *users)
	for i := range names {
		names[i] = fmt.Sprintf("load_user_%d", i)
		_, err := engine.Register(ctx, taroAuth.RegisterRequest{
			Username:        names[i],
			Password:        loadPassword,
			ConfirmPassword: loadPassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	tokens, loginStats := runLoginPhase(ctx, engine, names, *concurrency)
	validateStats := runValidatePhase(ctx, engine, tokens, *ops, *concurrency)
	locked, raceStats := runLockoutRace(ctx, engine, names[0], *racers)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("validate", validateStats)
	printStats("lockout-race", raceStats)
	fmt.Printf("lockout-race: locked=%t\n", locked)
	snap := engine.MetricsSnapshot()
	fmt.Printf("cache: hit=%d miss=%d error=%d\n",
		snap.Counters[taroAuth.MetricCacheHit],
		snap.Counters[taroAuth.MetricCacheMiss],
		snap.Counters[taroAuth.MetricCacheError],
	)
}

func runLoginPhase(ctx context.Context, engine *taroAuth.Engine, names []string, concurrency int) ([]string, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		tokens    = make([]string, len(names))
		latencies = make([]time.Duration, 0, len(names))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(names) {
					return
				}
				t0 := time.Now()
				res, err := engine.Login(ctx, names[i], loadPassword)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else {
					tokens[i] = res.Session.Token
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	live := tokens[:0]
	for _, tok := range tokens {
		if tok != "" {
			live = append(live, tok)
		}
	}
	return live, computeStats(time.Since(start), latencies, failures)
}

func runValidatePhase(ctx context.Context, engine *taroAuth.Engine, tokens []string, ops, concurrency int) phaseStats {
	if len(tokens) == 0 {
		return phaseStats{}
	}
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
				t0 := time.Now()
				_, _, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
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

// runLockoutRace fires racers wrong-password logins at one account at once
// and reports whether the account ended up locked. Failures are the expected
// outcome, so only unexpected errors count.
func runLockoutRace(ctx context.Context, engine *taroAuth.Engine, name string, racers int) (bool, phaseStats) {
	var (
		wg        sync.WaitGroup
		failures  int64
		latencies = make([]time.Duration, racers)
		gate      = make(chan struct{})
	)

	start := time.Now()
	for w := 0; w < racers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			<-gate
			t0 := time.Now()
			_, err := engine.Login(ctx, name, "wrong-password")
			latencies[worker] = time.Since(t0)
			if !errors.Is(err, taroAuth.ErrInvalidCredentials) && !errors.Is(err, taroAuth.ErrAccountLocked) {
				atomic.AddInt64(&failures, 1)
			}
		}(w)
	}
	close(gate)
	wg.Wait()
	stats := computeStats(time.Since(start), latencies, failures)

	_, err := engine.Login(ctx, name, loadPassword)
	return errors.Is(err, taroAuth.ErrAccountLocked), stats
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
