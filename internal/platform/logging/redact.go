package logging

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

type replaceFunc = func(groups []string, a slog.Attr) slog.Attr

// sensitiveFields are attribute and struct field names whose values never reach a log.
var sensitiveFields = []string{
	"password", "secret", "token", "cookie", "authorization",
	"apiKey", "apikey", "api_key",
	"accessToken", "access_token", "refreshToken", "refresh_token",
	"supabase_key", "dsn", "amqp_url",
	"Key", "DSN",
}

var sensitiveValues = []*regexp.Regexp{
	// Supabase keys are JWTs.
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+$`),
	// amqp:// and postgres:// DSNs with user:password
	regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://[^/\s:@]+:[^/\s@]+@`),
}

// redactOptions lists the masq rules applied on every destination.
func redactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields)+len(sensitiveValues)+2)

	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	opts = append(opts, masq.WithFieldPrefix("secret"), masq.WithFieldPrefix("private"))

	for _, re := range sensitiveValues {
		opts = append(opts, masq.WithRegex(re))
	}

	return opts
}

// Redactor returns a slog ReplaceAttr hook masking secrets, plus any extra rules.
func Redactor(extra ...masq.Option) replaceFunc {
	return masq.New(append(redactOptions(), extra...)...)
}

// redactHandler runs replace in front of handlers without a ReplaceAttr hook,
// such as the charm pretty printer.
type redactHandler struct {
	next    slog.Handler
	replace replaceFunc
	groups  []string
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.replace(h.groups, a))
		return true
	})

	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		masked = append(masked, h.replace(h.groups, a))
	}

	return &redactHandler{next: h.next.WithAttrs(masked), replace: h.replace, groups: h.groups}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	groups := append(h.groups[:len(h.groups):len(h.groups)], name)
	return &redactHandler{next: h.next.WithGroup(name), replace: h.replace, groups: groups}
}
