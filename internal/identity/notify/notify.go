// Package notify delivers workflow side effects outside the identity store:
// outbound email and session invalidation.
package notify

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

// LogDispatcher writes emails to the log instead of sending them. Links
// carry live tokens, so they are only logged when IncludeLinks is set.
type LogDispatcher struct {
	Logger       *slog.Logger
	IncludeLinks bool
}

func (d *LogDispatcher) Send(ctx context.Context, e domain.Email) error {
	attrs := []slog.Attr{
		slog.String("to", e.To),
		slog.String("template", string(e.Template)),
	}
	if d.IncludeLinks && e.Link != "" {
		attrs = append(attrs, slog.String("link", e.Link))
	}
	d.Logger.LogAttrs(ctx, slog.LevelInfo, "email dispatched", attrs...)
	return nil
}

// NopSessionInvalidator is used when no session store is configured.
type NopSessionInvalidator struct{}

func (NopSessionInvalidator) InvalidateAll(context.Context, string) error { return nil }
