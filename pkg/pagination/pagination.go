// Package pagination implements keyset paging over (created_at, id).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params holds the limit and opaque cursor a caller asked for.
type Params struct {
	Limit  int
	Cursor string
}

// Size is the page size after defaults and the cap are applied.
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	}
	return p.Limit
}

// Fetch is how many rows to query: one past the page to detect a next page.
func (p Params) Fetch() int {
	return p.Size() + 1
}

// After decodes the cursor. A blank cursor means the first page and yields nil.
func (p Params) After() (*Cursor, error) {
	raw := strings.TrimSpace(p.Cursor)
	if raw == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if c.ID == uuid.Nil || c.CreatedAt.IsZero() {
		return nil, errors.New("cursor is incomplete")
	}
	return &c, nil
}

// Cursor is the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// Encode returns the opaque form handed to clients.
func (c Cursor) Encode() string {
	c.CreatedAt = c.CreatedAt.UTC()
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// Cut trims rows fetched with Params.Fetch to the page size. next is empty on
// the last page.
func Cut[T any](rows []T, p Params, key func(T) Cursor) (page []T, next string) {
	size := p.Size()
	if len(rows) <= size {
		return rows, ""
	}
	page = rows[:size]
	return page, key(page[size-1]).Encode()
}
