package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.railyard.dev/internal/bus"
)

func envelope(t *testing.T, subject string, payload any) bus.Envelope {
	t.Helper()
	env, err := bus.NewEnvelope(subject, payload)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	return env
}

func TestAuditHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditHandler(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	tests := []struct {
		name   string
		env    bus.Envelope
		action bus.Action
		logs   string
	}{
		{"created", envelope(t, SubjectCreated, Product{ID: boltID, SKU: "BOLT-1"}), bus.Ack, "Product created"},
		{"price changed", envelope(t, SubjectPriceChanged, PriceChanged{ID: boltID, OldCents: 1, NewCents: 2}), bus.Ack, "newCents=2"},
		{"deleted", envelope(t, SubjectDeleted, Deleted{ID: nutID}), bus.Ack, "Product deleted"},
		{"other subject", envelope(t, "catalog.other", map[string]string{}), bus.Ack, "Ignoring event"},
		{
			"malformed payload",
			bus.Envelope{ID: "x", Subject: SubjectCreated, Data: json.RawMessage(`"not a product"`)},
			bus.Drop,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			r := handler(context.Background(), tt.env)

			if got := bus.Disposition(r); got != tt.action {
				t.Errorf("Expected %s, got %s", tt.action, got)
			}
			if tt.logs != "" && !strings.Contains(buf.String(), tt.logs) {
				t.Errorf("Expected log to contain %q, got %q", tt.logs, buf.String())
			}
		})
	}
}
