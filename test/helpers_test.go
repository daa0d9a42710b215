//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook that counts Redis round-trips
// (individual commands and pipeline calls).
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

type integrationEngine struct {
	engine  *taroAuth.Engine
	mr      *miniredis.Miniredis
	counter *cmdCounter
}

// newIntegrationEngine wires an Engine over miniredis and in-memory SQLite
// with the seeded administrator. Reset the counter before each measured call.
func newIntegrationEngine(t *testing.T) (*integrationEngine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// Warm the connection so handshake commands are not counted.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()

	st, err := store.Open(context.Background(), store.Config{
		Driver:    store.DriverSQLite,
		DSN:       ":memory:",
		SeedAdmin: true,
	})
	if err != nil {
		mr.Close()
		t.Fatalf("store open: %v", err)
	}

	engine, err := taroAuth.New().WithRedis(rdb).WithStore(st).Build()
	if err != nil {
		st.Close()
		mr.Close()
		t.Fatalf("build: %v", err)
	}

	return &integrationEngine{engine: engine, mr: mr, counter: counter}, func() {
		engine.Close()
		_ = st.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func loginAdmin(t *testing.T, ie *integrationEngine) string {
	t.Helper()
	res, err := ie.engine.Login(context.Background(), "admin", "password")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return res.Session.Token
}
