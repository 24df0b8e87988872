package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
)

const convertPath = "/api/v1/quotes/q1/convert"

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, key := range keys {
		delete(f.data, key)
		delete(f.ttls, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func keyedRequest(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestIdempotencyGuardTTLs(t *testing.T) {
	if got := NewIdempotency(newFakeStore(), 0, nil).baseTTL; got != defaultIdempotencyTTL {
		t.Fatalf("expected default ttl, got %v", got)
	}

	for _, tc := range []struct {
		name    string
		base    time.Duration
		guard   func(*Idempotency) func(http.Handler) http.Handler
		wantTTL time.Duration
	}{
		{"standard", time.Hour, (*Idempotency).Standard, time.Hour},
		{"critical raises short window", time.Hour, (*Idempotency).Critical, criticalIdempotencyTTL},
		{"critical keeps longer window", 30 * 24 * time.Hour, (*Idempotency).Critical, 30 * 24 * time.Hour},
	} {
		store := newFakeStore()
		handler := tc.guard(NewIdempotency(store, tc.base, nil))(okHandler())
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(convertPath, "k", `{}`))
		if len(store.ttls) != 1 {
			t.Fatalf("%s: expected one stored key, got %v", tc.name, store.ttls)
		}
		for _, ttl := range store.ttls {
			if ttl != tc.wantTTL {
				t.Fatalf("%s: expected ttl %v got %v", tc.name, tc.wantTTL, ttl)
			}
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := NewIdempotency(newFakeStore(), 0, nil).Critical()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(convertPath, "", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if called {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := NewIdempotency(newFakeStore(), 0, nil).Critical()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(convertPath, "abc", `{}`))
	if first.Code != http.StatusCreated || first.Header().Get(replayedHeader) != "" {
		t.Fatalf("unexpected first response %d %v", first.Code, first.Header())
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest(convertPath, "abc", `{}`))
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get(replayedHeader) != "true" {
		t.Fatalf("unexpected replay headers %v", replay.Header())
	}
	if strings.TrimSpace(replay.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	handler := NewIdempotency(newFakeStore(), 0, nil).Critical()(okHandler())
	path := "/api/v1/purchase-orders/p1/receipts"
	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(path, "xyz", `{"lines":[1]}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(path, "xyz", `{"lines":[2]}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	guard := NewIdempotency(store, 0, nil).Standard()
	var inner *httptest.ResponseRecorder

	outer := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = httptest.NewRecorder()
		guard(okHandler()).ServeHTTP(inner, keyedRequest(convertPath, "dup", `{}`))
		w.WriteHeader(http.StatusOK)
	}))
	outer.ServeHTTP(httptest.NewRecorder(), keyedRequest(convertPath, "dup", `{}`))

	if inner == nil || inner.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %+v", inner)
	}
	if code := errorCode(t, inner); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, code)
	}
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := NewIdempotency(store, 0, nil).Critical()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(convertPath, "retry-me", `{}`))
	if len(store.data) != 0 {
		t.Fatalf("server error should release the key, got %v", store.data)
	}
	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(convertPath, "retry-me", `{}`))
	if calls != 2 {
		t.Fatalf("expected retry after server error to reach handler, calls=%d", calls)
	}
}

func TestIdempotencyStoresResponseAfterClientDisconnect(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := NewIdempotency(store, 0, nil).Critical()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if cancel, ok := r.Context().Value(cancelKey{}).(context.CancelFunc); ok {
			cancel()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sales_order_id":"so-1"}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := keyedRequest(convertPath, "gone", `{}`)
	first = first.WithContext(context.WithValue(ctx, cancelKey{}, cancel))
	handler.ServeHTTP(httptest.NewRecorder(), first)

	retry := httptest.NewRecorder()
	handler.ServeHTTP(retry, keyedRequest(convertPath, "gone", `{}`))
	if retry.Code != http.StatusCreated || retry.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected stored 201 replay, got %d %s", retry.Code, retry.Body.String())
	}
	if strings.TrimSpace(retry.Body.String()) != `{"sales_order_id":"so-1"}` {
		t.Fatalf("unexpected replay body %s", retry.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != criticalIdempotencyTTL {
			t.Fatalf("expected %s to keep the critical ttl, got %v", key, ttl)
		}
	}
}

type cancelKey struct{}

func TestIdempotencyKeysAreScopedPerActor(t *testing.T) {
	var calls int
	handler := NewIdempotency(newFakeStore(), 0, nil).Critical()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for _, actor := range []string{"planner-a", "planner-b"} {
		req := keyedRequest(convertPath, "shared", `{}`)
		req = req.WithContext(WithActor(req.Context(), &outbox.Actor{ID: actor, Kind: "user"}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected distinct actors to run independently, calls=%d", calls)
	}
}

func TestActorMiddlewareReadsHeaders(t *testing.T) {
	var got *outbox.Actor
	handler := Actor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req.Header.Set("X-Actor-Id", "  planner-7 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got == nil || got.ID != "planner-7" || got.Kind != "user" {
		t.Fatalf("unexpected actor %+v", got)
	}

	got = nil
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != nil {
		t.Fatalf("expected anonymous request, got %+v", got)
	}
}
