package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/taroAuth/cache"
	"github.com/MrEthical07/taroAuth/internal"
	"github.com/MrEthical07/taroAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type managerTest struct {
	mgr   *Manager
	store *store.Store
	tier  *cache.Tier
	mr    *miniredis.Miniredis
	clock *fakeClock
}

func newManagerTest(t *testing.T, opts ...Option) (*managerTest, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tier := cache.New(rdb, cache.Config{Prefix: "rt"})

	st, err := store.Open(context.Background(), store.Config{Driver: store.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("store open: %v", err)
	}

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	mgr := NewManager(st, tier, DefaultConfig(), opts...)

	return &managerTest{mgr: mgr, store: st, tier: tier, mr: mr, clock: clock}, func() {
		mgr.Close()
		_ = st.Close()
		rdb.Close()
		mr.Close()
	}
}

func TestCreateWritesThroughToCache(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1", IPAddress: "10.0.0.1", UserAgent: "test"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if want := mt.clock.Now().Add(7 * 24 * time.Hour); !s.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, s.ExpiresAt)
	}
	if !mt.mr.Exists(mt.tier.Keys().SessionByToken(s.Token)) {
		t.Fatal("expected session to be cached on create")
	}
	if _, err := mt.store.FindSessionByToken(ctx, s.Token); err != nil {
		t.Fatalf("expected session in store: %v", err)
	}
}

func TestValidateFallsBackToStoreAndRepairsCache(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mt.mr.FlushAll()

	got, err := mt.mgr.Validate(ctx, s.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.UserID != "u1" || got.ID != s.ID {
		t.Fatalf("unexpected session %+v", got)
	}
	if !mt.mr.Exists(mt.tier.Keys().SessionByToken(s.Token)) {
		t.Fatal("expected cache to be repopulated after store fallback")
	}
}

// Expiry T: every check before T passes and every check at or after T fails,
// on the cache path and on the store path alike.
func TestValidateExpiryBoundary(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	expiry := s.ExpiresAt

	paths := map[string]func(){
		"cache": func() {},
		"store": func() { mt.mr.FlushAll() },
	}
	for name, prepare := range paths {
		mt.clock.Set(expiry.Add(-time.Nanosecond))
		prepare()
		if _, err := mt.mgr.Validate(ctx, s.Token); err != nil {
			t.Fatalf("%s path: expected valid just before expiry, got %v", name, err)
		}
	}

	// The cache entry is still present (miniredis time has not moved) so the
	// cache path must reject on the absolute timestamp alone.
	mt.clock.Set(expiry)
	if _, err := mt.mgr.Validate(ctx, s.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("cache path: expected ErrInvalid at expiry, got %v", err)
	}
}

func TestValidateExpiredFromStoreIsInvalidAndReaped(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mt.mr.FlushAll()
	mt.clock.Set(s.ExpiresAt.Add(time.Second))

	if _, err := mt.mgr.Validate(ctx, s.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if mt.mr.Exists(mt.tier.Keys().SessionByToken(s.Token)) {
		t.Fatal("expired session must not be cached")
	}

	mt.mgr.Close()
	if _, err := mt.store.FindSessionByToken(ctx, s.Token); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected expired row to be reaped, got %v", err)
	}
}

func TestValidateRejectsUnknownAndMalformedTokens(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	token, err := internal.NewSessionToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	for _, tok := range []string{"", "short", token} {
		if _, err := mt.mgr.Validate(ctx, tok); !errors.Is(err, ErrInvalid) {
			t.Fatalf("token %q: expected ErrInvalid, got %v", tok, err)
		}
	}
}

func TestCreateRetriesOnTokenCollision(t *testing.T) {
	first, _ := internal.NewSessionToken()
	second, _ := internal.NewSessionToken()
	seq := []string{first, first, second}
	var i atomic.Int64
	next := func() (string, error) {
		n := i.Add(1) - 1
		return seq[n], nil
	}

	mt, done := newManagerTest(t, WithTokenSource(next))
	defer done()
	ctx := context.Background()

	a, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := mt.mgr.Create(ctx, CreateParams{UserID: "u2"})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if a.Token != first || b.Token != second {
		t.Fatalf("expected retry with a fresh token, got %q then %q", a.Token, b.Token)
	}

	owner, err := mt.mgr.Validate(ctx, first)
	if err != nil || owner.UserID != "u1" {
		t.Fatalf("colliding create must not overwrite the existing session: %+v %v", owner, err)
	}
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	fixed, _ := internal.NewSessionToken()
	mt, done := newManagerTest(t, WithTokenSource(func() (string, error) { return fixed, nil }))
	defer done()
	ctx := context.Background()

	if _, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mt.mgr.Create(ctx, CreateParams{UserID: "u2"}); !errors.Is(err, ErrTokenCollision) {
		t.Fatalf("expected ErrTokenCollision, got %v", err)
	}
}

func TestCacheDownDegradesToStore(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()
	mt.mr.Close()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create with cache down: %v", err)
	}
	got, err := mt.mgr.Validate(ctx, s.Token)
	if err != nil || got.UserID != "u1" {
		t.Fatalf("Validate with cache down: %+v %v", got, err)
	}
	if err := mt.mgr.Revoke(ctx, s.Token); err != nil {
		t.Fatalf("Revoke with cache down: %v", err)
	}
}

type downStore struct{ Store }

func (downStore) FindSessionByToken(context.Context, string) (*store.Session, error) {
	return nil, store.ErrUnavailable
}

func (downStore) DeleteSessionByToken(context.Context, string) error {
	return store.ErrUnavailable
}

func TestStoreDownIsFatalForValidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	mgr := NewManager(downStore{}, cache.New(rdb, cache.Config{}), DefaultConfig())
	defer mgr.Close()

	token, _ := internal.NewSessionToken()
	if _, err := mgr.Validate(context.Background(), token); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := mgr.Revoke(context.Background(), token); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from revoke, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := mt.mgr.Revoke(ctx, s.Token); err != nil {
			t.Fatalf("Revoke %d: %v", i, err)
		}
	}
	if mt.mr.Exists(mt.tier.Keys().SessionByToken(s.Token)) {
		t.Fatal("expected cache entry removed")
	}
	if _, err := mt.mgr.Validate(ctx, s.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after revoke, got %v", err)
	}
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	old, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mt.clock.Set(mt.clock.Now().Add(6 * 24 * time.Hour))
	fresh, err := mt.mgr.Create(ctx, CreateParams{UserID: "u2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mt.clock.Set(old.ExpiresAt)
	n, err := mt.mgr.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if _, err := mt.store.FindSessionByToken(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh session must survive sweep: %v", err)
	}
}

func TestTouchUpdatesLastAccessed(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mt.mgr.Touch(s)
	later := mt.clock.Now().Add(5 * time.Minute)
	mt.clock.Set(later)
	mt.mgr.Touch(s)
	mt.mgr.Close()

	rec, err := mt.store.FindSessionByToken(ctx, s.Token)
	if err != nil {
		t.Fatalf("FindSessionByToken: %v", err)
	}
	if !rec.LastAccessedAt.Equal(later) {
		t.Fatalf("expected last_accessed_at %s, got %s", later, rec.LastAccessedAt)
	}
}

func TestConcurrentValidateSharesStoreRead(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mt.mr.FlushAll()

	const n = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			got, err := mt.mgr.Validate(ctx, s.Token)
			if err != nil || got.UserID != "u1" {
				t.Errorf("Validate: %+v %v", got, err)
			}
		}()
	}
	close(start)
	wg.Wait()
}

// parkedTouchStore holds TouchSession either before or after the row update
// until release is closed.
type parkedTouchStore struct {
	*store.Store
	afterUpdate bool
	entered     chan struct{}
	release     chan struct{}
}

func (p *parkedTouchStore) TouchSession(ctx context.Context, token string, at time.Time) error {
	if !p.afterUpdate {
		close(p.entered)
		<-p.release
	}
	err := p.Store.TouchSession(ctx, token, at)
	if p.afterUpdate {
		close(p.entered)
		<-p.release
	}
	return err
}

func TestTouchRacingRevokeDoesNotRestoreSession(t *testing.T) {
	for name, afterUpdate := range map[string]bool{
		"revoke before row update":    false,
		"revoke before cache refresh": true,
	} {
		t.Run(name, func(t *testing.T) {
			mt, done := newManagerTest(t)
			defer done()
			ctx := context.Background()

			parked := &parkedTouchStore{
				Store:       mt.store,
				afterUpdate: afterUpdate,
				entered:     make(chan struct{}),
				release:     make(chan struct{}),
			}
			mgr := NewManager(parked, mt.tier, DefaultConfig(), WithClock(mt.clock.Now))

			s, err := mgr.Create(ctx, CreateParams{UserID: "u1"})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			mt.clock.Set(mt.clock.Now().Add(5 * time.Minute))
			got, err := mgr.Validate(ctx, s.Token)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}

			mgr.Touch(got)
			<-parked.entered
			if err := mgr.Revoke(ctx, s.Token); err != nil {
				t.Fatalf("Revoke: %v", err)
			}
			close(parked.release)
			mgr.Close()

			if mt.mr.Exists(mt.tier.Keys().SessionByToken(s.Token)) {
				t.Fatal("touch wrote the revoked session back to the cache")
			}
			if _, err := mgr.Validate(ctx, s.Token); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid after revoke, got %v", err)
			}
		})
	}
}

func TestTouchRefreshesCachedCopy(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	s, err := mt.mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	later := mt.clock.Now().Add(5 * time.Minute)
	mt.clock.Set(later)
	mt.mgr.Touch(s)
	mt.mgr.Close()

	var cached Session
	if !mt.tier.Get(ctx, mt.tier.Keys().SessionByToken(s.Token), &cached) {
		t.Fatal("expected session to stay cached")
	}
	if !cached.LastAccessedAt.Equal(later) {
		t.Fatalf("expected cached last_accessed_at %s, got %s", later, cached.LastAccessedAt)
	}
}

// parkedFindStore holds the first FindSessionByToken after it has read the row.
type parkedFindStore struct {
	*store.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *parkedFindStore) FindSessionByToken(ctx context.Context, token string) (*store.Session, error) {
	rec, err := p.Store.FindSessionByToken(ctx, token)
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return rec, err
}

func TestStoreFallbackRacingRevokeDoesNotRestoreSession(t *testing.T) {
	mt, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	parked := &parkedFindStore{Store: mt.store, entered: make(chan struct{}), release: make(chan struct{})}
	mgr := NewManager(parked, mt.tier, DefaultConfig(), WithClock(mt.clock.Now))
	defer mgr.Close()

	s, err := mgr.Create(ctx, CreateParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mt.mr.FlushAll()

	result := make(chan error, 1)
	go func() {
		_, err := mgr.Validate(ctx, s.Token)
		result <- err
	}()

	<-parked.entered
	if err := mgr.Revoke(ctx, s.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	close(parked.release)

	if err := <-result; !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected the in-flight validate to see the revoke, got %v", err)
	}
	if mt.mr.Exists(mt.tier.Keys().SessionByToken(s.Token)) {
		t.Fatal("store fallback wrote the revoked session back to the cache")
	}
	if _, err := mgr.Validate(ctx, s.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after revoke, got %v", err)
	}
}
