package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldSessionID is the structured logging key for the worker session identifier.
	FieldSessionID = "session_id"
	// FieldRegion is the structured logging key for the worker's claim region.
	FieldRegion = "region"
)

const redacted = "[redacted]"

// secretKeys name attributes whose values are credentials. The account
// service treats bearer tokens as full workspace access.
var secretKeys = map[string]struct{}{
	"token":         {},
	"token_secret":  {},
	"authorization": {},
	"bearer":        {},
}

func isSecretKey(key string) bool {
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

// redactAttr masks credential values, descending into groups.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, inner := range group {
			masked[i] = redactAttr(inner)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(masked...)}
	}
	if isSecretKey(attr.Key) && attr.Value.String() != "" {
		return slog.String(attr.Key, redacted)
	}
	return attr
}

// identityHandler stamps the worker identity on every record and keeps
// credentials out of the log.
type identityHandler struct {
	base      slog.Handler
	sessionID string
	region    string
}

func newIdentityHandler(base slog.Handler, sessionID, region string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &identityHandler{
		base:      base,
		sessionID: strings.TrimSpace(sessionID),
		region:    strings.TrimSpace(region),
	}
}

func (h *identityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *identityHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	sessionID, region := h.sessionID, h.region
	record.Attrs(func(attr slog.Attr) bool {
		switch attr.Key {
		case FieldSessionID:
			sessionID = ""
		case FieldRegion:
			region = ""
		}
		out.AddAttrs(redactAttr(attr))
		return true
	})
	if sessionID != "" {
		out.AddAttrs(slog.String(FieldSessionID, sessionID))
	}
	if region != "" {
		out.AddAttrs(slog.String(FieldRegion, region))
	}
	return h.base.Handle(ctx, out)
}

func (h *identityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = redactAttr(attr)
	}
	return &identityHandler{base: h.base.WithAttrs(masked), sessionID: h.sessionID, region: h.region}
}

func (h *identityHandler) WithGroup(name string) slog.Handler {
	return &identityHandler{base: h.base.WithGroup(name), sessionID: h.sessionID, region: h.region}
}
