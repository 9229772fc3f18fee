package catalog

import (
	"context"
	"log/slog"

	"go.railyard.dev/internal/bus"
	"go.railyard.dev/internal/rop"
)

// AuditHandler logs every catalog event it receives. Payloads that do not
// decode as the subject's type are dropped by the consumer.
func AuditHandler(logger *slog.Logger) bus.Handler {
	return func(ctx context.Context, env bus.Envelope) rop.Result[struct{}] {
		attrs := []any{"subject", env.Subject, "eventId", env.ID, "occurredAt", env.OccurredAt}

		var logged rop.Result[struct{}]
		switch env.Subject {
		case SubjectCreated:
			logged = rop.Map(bus.Decode[Product](env), func(p Product) struct{} {
				logger.InfoContext(ctx, "Product created", append(attrs, "productId", p.ID, "sku", p.SKU)...)
				return struct{}{}
			})
		case SubjectPriceChanged:
			logged = rop.Map(bus.Decode[PriceChanged](env), func(e PriceChanged) struct{} {
				logger.InfoContext(ctx, "Product price changed", append(attrs, "productId", e.ID, "oldCents", e.OldCents, "newCents", e.NewCents)...)
				return struct{}{}
			})
		case SubjectDeleted:
			logged = rop.Map(bus.Decode[Deleted](env), func(e Deleted) struct{} {
				logger.InfoContext(ctx, "Product deleted", append(attrs, "productId", e.ID)...)
				return struct{}{}
			})
		default:
			logger.DebugContext(ctx, "Ignoring event", attrs...)
			logged = rop.Success(struct{}{})
		}
		return logged
	}
}
