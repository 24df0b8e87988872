package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// ErrNoDecoder means no decoder is registered for an event type and version.
var ErrNoDecoder = errors.New("no decoder registered")

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps event type and payload version to a decoder. Register
// everything before the consumer starts; lookups are not synchronized.
type Decoders struct {
	byKey map[decoderKey]func(json.RawMessage) (any, error)
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: map[decoderKey]func(json.RawMessage) (any, error){}}
}

// RegisterJSON decodes version of eventType into a T.
func RegisterJSON[T any](d *Decoders, eventType enums.OutboxEventType, version int) {
	d.byKey[decoderKey{eventType, version}] = func(raw json.RawMessage) (any, error) {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil, errors.New("empty payload")
		}
		var out T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Decode returns the registered decoder's value for raw.
func (d *Decoders) Decode(eventType enums.OutboxEventType, version int, raw json.RawMessage) (any, error) {
	decode, ok := d.byKey[decoderKey{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("%w: %s v%d", ErrNoDecoder, eventType, version)
	}
	return decode(raw)
}

// DecodeAs decodes raw and asserts the result is a T.
func DecodeAs[T any](d *Decoders, eventType enums.OutboxEventType, version int, raw json.RawMessage) (T, error) {
	var zero T
	value, err := d.Decode(eventType, version, raw)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%s v%d decoded to %T, want %T", eventType, version, value, zero)
	}
	return typed, nil
}
