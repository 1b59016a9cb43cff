package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/frontdesk/internal/api"
	"github.com/hyperengineering/frontdesk/internal/auth"
	"github.com/hyperengineering/frontdesk/internal/gym"
	"github.com/hyperengineering/frontdesk/internal/reconcile"
	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
)

const hubKey = "e2e-hub-key"

var epoch = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- In-process hub ---

// testHub is the hub served over real HTTP, with switches to take it down
// or to fail writes to one collection.
type testHub struct {
	backend *remote.MemoryBackend
	srv     *httptest.Server

	mu        sync.Mutex
	down      bool
	failWrite types.Collection
	failCount int
}

func startHub(t *testing.T) *testHub {
	t.Helper()
	h := &testHub{backend: remote.NewMemoryBackend()}
	router := api.NewRouter(api.NewHandler(h.backend, hubKey, "e2e"), nil)
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.reject(r) {
			api.WriteProblem(w, r, http.StatusServiceUnavailable, "Backend unavailable")
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *testHub) reject(r *http.Request) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.down {
		return true
	}
	if h.failCount > 0 && r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/"+string(h.failWrite)) {
		h.failCount--
		return true
	}
	return false
}

func (h *testHub) setDown(down bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.down = down
}

// failWrites makes the next n writes to c fail as if the hub were down.
func (h *testHub) failWrites(c types.Collection, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failWrite, h.failCount = c, n
}

func (h *testHub) client() *remote.Client {
	return remote.NewClient(h.srv.URL, hubKey, 5*time.Second)
}

func (h *testHub) count(c types.Collection) int {
	return h.backend.Count(c)
}

// --- Devices ---

// device is one front-desk install syncing through the hub.
type device struct {
	id     string
	store  *store.SQLiteStore
	engine *reconcile.Engine
	svc    *gym.Service
	sess   *auth.Session
}

func newDevice(t *testing.T, id string, h *testHub, clock *fakeClock) *device {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), id+".db"), store.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &device{
		id:     id,
		store:  s,
		engine: reconcile.New(s, h.client(), id, reconcile.WithClock(clock.Now)),
		svc:    gym.NewService(s, nil, gym.WithClock(clock.Now), gym.WithLocation(time.UTC)),
	}
}

// bootstrap creates the device's first staff account and signs in with it.
func (d *device) bootstrap(t *testing.T, username string) {
	t.Helper()
	ctx := context.Background()
	if _, err := d.svc.AddStaff(ctx, nil, gym.NewStaff{Name: username, Username: username, Secret: "s3cret"}); err != nil {
		t.Fatalf("%s: AddStaff failed: %v", d.id, err)
	}
	sess, err := auth.Login(ctx, d.store, username, "s3cret", epoch)
	if err != nil {
		t.Fatalf("%s: Login failed: %v", d.id, err)
	}
	d.sess = sess
}

func (d *device) sync(t *testing.T) *reconcile.Result {
	t.Helper()
	res, err := d.engine.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("%s: Synchronize failed: %v", d.id, err)
	}
	return res
}

func (d *device) register(t *testing.T, name string, category types.PlanCategory) string {
	t.Helper()
	reg, err := d.svc.Register(context.Background(), d.sess, gym.Registration{
		Name: name,
		Plan: gym.PlanInput{Category: category},
	})
	if err != nil {
		t.Fatalf("%s: Register failed: %v", d.id, err)
	}
	return reg.Member.Key
}

func (d *device) checkIn(t *testing.T, memberKey string) *gym.CheckInResult {
	t.Helper()
	res, err := d.svc.CheckIn(context.Background(), memberKey)
	if err != nil {
		t.Fatalf("%s: CheckIn failed: %v", d.id, err)
	}
	return res
}

func (d *device) member(t *testing.T, key string) *types.Member {
	t.Helper()
	m, err := d.store.GetMemberByKey(context.Background(), key)
	if err != nil {
		t.Fatalf("%s: GetMemberByKey(%s) failed: %v", d.id, key, err)
	}
	return m
}

func assertNoDirty(t *testing.T, d *device) {
	t.Helper()
	dirty, err := d.store.CountDirty(context.Background())
	if err != nil {
		t.Fatalf("CountDirty failed: %v", err)
	}
	for c, n := range dirty {
		if n != 0 {
			t.Errorf("%s: %s has %d dirty rows, want 0", d.id, c, n)
		}
	}
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
