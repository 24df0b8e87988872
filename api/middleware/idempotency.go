package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopfloor-backend/api/responses"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightLease          = 2 * time.Minute
)

// storedResponse is what a key holds in Redis. Status 0 marks a request
// that is still running.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

func (s storedResponse) inFlight() bool { return s.Status == 0 }

// Idempotency hands out per-route guards that replay the first response for
// a repeated Idempotency-Key.
type Idempotency struct {
	store   pkgredis.IdempotencyStore
	baseTTL time.Duration
	logg    *logger.Logger
}

// NewIdempotency builds the guards. A zero baseTTL selects 24h.
func NewIdempotency(store pkgredis.IdempotencyStore, baseTTL time.Duration, logg *logger.Logger) *Idempotency {
	if baseTTL <= 0 {
		baseTTL = defaultIdempotencyTTL
	}
	return &Idempotency{store: store, baseTTL: baseTTL, logg: logg}
}

// Standard guards a mutation for the configured window.
func (i *Idempotency) Standard() func(http.Handler) http.Handler {
	return i.guard(i.baseTTL)
}

// Critical guards conversions and receipts, which keep their keys for at
// least seven days.
func (i *Idempotency) Critical() func(http.Handler) http.Handler {
	return i.guard(max(i.baseTTL, criticalIdempotencyTTL))
}

func (i *Idempotency) guard(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if i == nil || i.store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(body)
			key := i.store.IdempotencyKey(requestScope(r), clientKey)

			replay, err := i.claim(ctx, key, hash)
			if err != nil {
				responses.WriteError(ctx, i.logg, w, err)
				return
			}
			if replay != nil {
				replayResponse(w, replay)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			// the handler may have committed after the client went away
			i.settle(context.WithoutCancel(ctx), key, storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			}, ttl)
		})
	}
}

// claim reserves key for this request. A non-nil response means the key
// already holds a finished response for the same body.
func (i *Idempotency) claim(ctx context.Context, key, hash string) (*storedResponse, error) {
	marker, _ := json.Marshal(storedResponse{RequestHash: hash})
	won, err := i.store.SetNX(ctx, key, string(marker), inFlightLease)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	if won {
		return nil, nil
	}

	raw, err := i.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}
	var existing storedResponse
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if existing.RequestHash != hash {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	if existing.inFlight() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress")
	}
	return &existing, nil
}

// settle overwrites the in-flight marker with the final response in one
// write. Server errors drop the key so the caller may retry.
func (i *Idempotency) settle(ctx context.Context, key string, resp storedResponse, ttl time.Duration) {
	if resp.Status >= http.StatusInternalServerError {
		if err := i.store.Del(ctx, key); err != nil {
			i.logError(ctx, "release idempotency key", err)
		}
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		i.logError(ctx, "marshal idempotency record", err)
		return
	}
	if err := i.store.Set(ctx, key, string(payload), ttl); err != nil {
		i.logError(ctx, "persist idempotency record", err)
	}
}

func (i *Idempotency) logError(ctx context.Context, msg string, err error) {
	if i.logg != nil {
		i.logg.Error(ctx, msg, err)
	}
}

// requestScope keeps keys from different callers and endpoints apart.
func requestScope(r *http.Request) string {
	actorID := "anonymous"
	if actor := ActorFromContext(r.Context()); actor != nil {
		actorID = actor.ID
	}
	return actorID + "|" + r.Method + "|" + r.URL.Path
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replayResponse(w http.ResponseWriter, resp *storedResponse) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
