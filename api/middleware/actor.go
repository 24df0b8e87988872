package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/shopfloor-backend/api/validators"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorKindHeader = "X-Actor-Kind"

	defaultActorKind = "user"
	maxActorLen      = 128
)

// Actor records the caller identity sent by the upstream gateway so it can be
// stamped on emitted events. Requests without the header stay anonymous.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := validators.SanitizeString(r.Header.Get(actorIDHeader), maxActorLen)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			kind := strings.ToLower(validators.SanitizeString(r.Header.Get(actorKindHeader), maxActorLen))
			if kind == "" {
				kind = defaultActorKind
			}

			ctx := WithActor(r.Context(), &outbox.Actor{ID: id, Kind: kind})
			if logg != nil {
				ctx = logg.WithField(ctx, "actor_id", id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
