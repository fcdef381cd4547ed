package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/conduit-realworld/conduitauth"
	"github.com/conduit-realworld/conduitauth/userstore"
)

type seeded struct {
	header    string
	sessionID string
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to seed")
		perUser     = flag.Int("sessions-per-user", 10, "sessions seeded for each user")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "Authenticate calls per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *perUser <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, sessions-per-user, concurrency, and ops must be > 0")
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

	cfg := conduitauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("conduit-loadtest-signing-secret-0123456789")
	cfg.Session.RedisPrefix = *prefix
	cfg.Session.TTL = 24 * time.Hour

	userStore := userstore.NewMemory()
	engine, err := conduitauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(userStore).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(false).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	total := *users * *perUser
	live := make([]seeded, 0, total)
	fmt.Printf("seeding %d users x %d sessions...\n", *users, *perUser)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		rec, err := userStore.CreateUser(ctx, conduitauth.CreateUserInput{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@loadtest.local", i),
			PasswordHash: "unused",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create user failed: %v\n", err)
			os.Exit(1)
		}
		for j := 0; j < *perUser; j++ {
			tok, err := engine.IssueToken(ctx, rec.ID, "10.0.0.1")
			if err != nil {
				fmt.Fprintf(os.Stderr, "issue token failed: %v\n", err)
				os.Exit(1)
			}
			live = append(live, seeded{header: "Token " + tok.Token, sessionID: tok.SessionID})
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	// Revoke every tenth session so the reject phase exercises session_not_found.
	revoked := make([]seeded, 0, total/10+1)
	for i := 0; i < len(live); i += 10 {
		if err := engine.Logout(ctx, live[i].sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "logout failed: %v\n", err)
			os.Exit(1)
		}
		revoked = append(revoked, live[i])
	}
	valid := make([]seeded, 0, len(live)-len(revoked))
	for i := range live {
		if i%10 != 0 {
			valid = append(valid, live[i])
		}
	}

	authStats := runPhase(ctx, engine, valid, *ops, *concurrency, isAuthenticated)
	rejectStats := runPhase(ctx, engine, revoked, *ops, *concurrency, isRejected)

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("revoked", rejectStats)
}

func isAuthenticated(r conduitauth.Result) bool {
	_, ok := r.(conduitauth.Authenticated)
	return ok
}

func isRejected(r conduitauth.Result) bool {
	rej, ok := r.(conduitauth.Rejected)
	return ok && rej.Reason == conduitauth.ReasonSessionNotFound
}

func runPhase(ctx context.Context, engine *conduitauth.Engine, pool []seeded, ops, concurrency int, want func(conduitauth.Result) bool) phaseStats {
	if len(pool) == 0 {
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
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					break
				}
				s := pool[r.Intn(len(pool))]
				t0 := time.Now()
				res := engine.Authenticate(ctx, s.header, conduitauth.ModeRequired)
				local = append(local, time.Since(t0))
				if !want(res) {
					atomic.AddInt64(&failures, 1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d unexpected=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
