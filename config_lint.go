package conduitauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/conduit-realworld/conduitauth/jwt"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo flags a deliberate but notable choice.
	LintInfo LintSeverity = iota
	// LintWarn flags a setting that weakens the session model.
	LintWarn
	// LintHigh flags a setting that lets revoked or expired state keep working.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one advisory finding. Lint findings never fail Build.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult holds the findings of Config.Lint in a stable order.
type LintResult []LintWarning

func (r LintResult) Codes() []string {
	codes := make([]string, len(r))
	for i, w := range r {
		codes[i] = w.Code
	}
	return codes
}

// BySeverity returns the findings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the findings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	filtered := r.BySeverity(min)
	if len(filtered) == 0 {
		return nil
	}
	parts := make([]string, len(filtered))
	for i, w := range filtered {
		parts[i] = fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message)
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports risky but valid settings. Run Validate first; Lint assumes a valid
// Config.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", LintWarn,
			"JWT leeway %v accepts expired tokens for longer than typical clock skew", c.JWT.Leeway)
	}
	if c.JWT.AccessTTL > 24*time.Hour {
		add("access_ttl_long", LintInfo,
			"access tokens live %v; logout is the only early revocation", c.JWT.AccessTTL)
	}
	if strings.EqualFold(c.JWT.SigningMethod, string(jwt.MethodHS256)) {
		add("signing_hs256", LintInfo,
			"hs256 uses one shared secret for signing and verification")
	}

	switch {
	case c.Session.TTL == 0:
		add("session_no_expiry", LintInfo,
			"sessions have no forced expiry and end only on logout")
		if c.Session.NullRetention < c.JWT.AccessTTL {
			add("null_retention_short", LintHigh,
				"redis retention %v is shorter than the access TTL %v; live tokens will lose their session",
				c.Session.NullRetention, c.JWT.AccessTTL)
		}
	case c.Session.TTL < c.JWT.AccessTTL:
		add("session_shorter_than_access", LintWarn,
			"session TTL %v is shorter than the access TTL %v; tokens outlive their session",
			c.Session.TTL, c.JWT.AccessTTL)
	}

	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn,
			"argon2 memory %d KiB is below the 64 MiB recommendation", c.Password.Memory)
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not recorded")
	}

	return ws
}
