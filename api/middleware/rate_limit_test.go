package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	pkgredis "github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (pkgredis.WindowCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pkgredis.WindowCount{}, f.err
	}
	f.counts[scope]++
	return pkgredis.WindowCount{Count: f.counts[scope], Limit: limit, ResetIn: 1500 * time.Millisecond}, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWriteRateLimit_BlocksOverLimitByIP(t *testing.T) {
	store := newFakeRateStore()
	handler := WriteRateLimit(WriteRateLimitPolicy{Window: time.Minute, Limit: 1}, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{}`))
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 {
			if rec.Code != http.StatusOK {
				t.Fatalf("expected success, got %d", rec.Code)
			}
			if rec.Header().Get("X-RateLimit-Limit") != "1" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
				t.Fatalf("unexpected quota headers %v", rec.Header())
			}
		}
		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if got := rec.Header().Get("Retry-After"); got != "2" {
				t.Fatalf("expected Retry-After 2, got %q", got)
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", payload.Error.Code)
			}
		}
	}
	if store.counts["writes:ip:5.6.7.8"] != 2 {
		t.Fatalf("expected ip scoped counter, got %v", store.counts)
	}
}

func TestWriteRateLimit_KeysByActor(t *testing.T) {
	store := newFakeRateStore()
	handler := WriteRateLimit(WriteRateLimitPolicy{Window: time.Minute, Limit: 1}, store, nil)(okHandler())

	for _, actor := range []string{"planner-a", "planner-b"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
		req = req.WithContext(WithActor(req.Context(), &outbox.Actor{ID: actor}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("actor %s: expected 200 got %d", actor, rec.Code)
		}
	}
}

func TestWriteRateLimit_IgnoresReads(t *testing.T) {
	store := newFakeRateStore()
	handler := WriteRateLimit(WriteRateLimitPolicy{Window: time.Minute, Limit: 1}, store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items/x/transactions", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected reads to bypass limit, got %d", rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("reads should not be counted")
	}
}

func TestWriteRateLimit_FailsOpenOnStoreError(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	handler := WriteRateLimit(WriteRateLimitPolicy{Window: time.Minute, Limit: 1}, store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fail-open, got %d", rec.Code)
	}
}
