// Package bus publishes and consumes domain events over NATS JetStream.
// Handlers speak rop.Result; the result decides whether a message is
// acknowledged, redelivered or dropped.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"go.railyard.dev/internal/rop"
)

// CodeInvalidMessage is reported when a payload cannot be decoded.
const CodeInvalidMessage = "Message.Invalid"

// Envelope is the JSON wire format of every event.
type Envelope struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps payload for subject with a fresh id.
func NewEnvelope(subject string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", subject, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

// Decode reads the envelope payload as T. Malformed payloads fail with a
// validation error so the message is dropped rather than retried.
func Decode[T any](env Envelope) rop.Result[T] {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return rop.Failure[T](rop.ValidationError(CodeInvalidMessage, err.Error()))
	}
	return rop.Success(v)
}

// Handler processes one event.
type Handler func(ctx context.Context, env Envelope) rop.Result[struct{}]

// Action is what the consumer does with a handled message.
type Action int

const (
	Ack Action = iota
	Retry
	Drop
)

func (a Action) String() string {
	switch a {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	default:
		return "drop"
	}
}

// Disposition maps a handler result to an Action. Client errors other than
// a timeout will fail again on redelivery, so they are dropped.
func Disposition(r rop.Result[struct{}]) Action {
	if r.IsSuccess() {
		return Ack
	}
	status := r.StatusCode()
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusRequestTimeout {
		return Drop
	}
	return Retry
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Announce publishes an event built from a successful result. A publish
// failure is logged and does not change the result: the state change it
// reports has already been saved.
func Announce[T any](ctx context.Context, p Publisher, subject string, r rop.Result[T], payload func(T) any) rop.Result[T] {
	return rop.Tap(r, func(v T) {
		if err := p.Publish(ctx, subject, payload(v)); err != nil {
			slog.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
		}
	})
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, string, any) error { return nil }
