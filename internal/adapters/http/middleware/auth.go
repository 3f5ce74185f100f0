package middleware

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// ContextKeyCaller is the gin key under which RequireAuth stores the *Caller.
const ContextKeyCaller = "caller"

// Caller is the identity an upstream gateway asserts once it has validated the
// bearer token. The token itself never reaches the service.
type Caller struct {
	Subject string
	Roles   []string
}

// HasAnyRole reports whether the caller holds at least one of roles.
func (c *Caller) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, func(r string) bool {
		return slices.Contains(c.Roles, r)
	})
}

// gatewayHeaders names the headers the gateway writes the identity into.
type gatewayHeaders struct {
	subject string
	roles   string
}

func headersFor(cfg *config.AuthConfig) gatewayHeaders {
	h := gatewayHeaders{subject: "X-User-ID", roles: "X-User-Roles"}
	if cfg == nil {
		return h
	}

	h.subject = cmp.Or(cfg.SubjectHeader, h.subject)
	h.roles = cmp.Or(cfg.RolesHeader, h.roles)

	return h
}

// read builds the caller from r. Roles are a comma separated list.
func (h gatewayHeaders) read(r *http.Request) *Caller {
	caller := &Caller{Subject: strings.TrimSpace(r.Header.Get(h.subject))}

	for role := range strings.SplitSeq(r.Header.Get(h.roles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			caller.Roles = append(caller.Roles, role)
		}
	}

	return caller
}

// CallerFromRequest reads the gateway identity headers configured in cfg.
func CallerFromRequest(r *http.Request, cfg *config.AuthConfig) *Caller {
	return headersFor(cfg).read(r)
}

// CurrentCaller returns the caller stored by RequireAuth, or nil.
func CurrentCaller(c *gin.Context) *Caller {
	caller, _ := c.Value(ContextKeyCaller).(*Caller)
	return caller
}

// RequireAuth admits requests carrying a gateway subject and, when
// cfg.EditorRoles is non-empty, one of those roles. Everyone else gets
// 403 FORBIDDEN.
func RequireAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	headers := headersFor(cfg)

	var editors []string
	if cfg != nil {
		editors = cfg.EditorRoles
	}

	denied := "insufficient permissions: one of roles [" + strings.Join(editors, ", ") + "] required"

	return func(c *gin.Context) {
		caller := headers.read(c.Request)

		switch {
		case caller.Subject == "":
			dto.AbortWithErrorCode(c, dto.ErrorCodeForbidden, "authentication required")
			return
		case len(editors) > 0 && !caller.HasAnyRole(editors...):
			dto.AbortWithErrorCode(c, dto.ErrorCodeForbidden, denied)
			return
		}

		c.Set(ContextKeyCaller, caller)
		c.Request = c.Request.WithContext(logging.With(c.Request.Context(), "subject", caller.Subject))
		c.Next()
	}
}
