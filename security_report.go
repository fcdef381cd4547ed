package conduitauth

import (
	"strings"
	"time"
)

// SecurityReport summarizes the effective security posture of an Engine. It holds
// no key material.
type SecurityReport struct {
	SigningAlgorithm string
	Issuer           string
	AccessTTL        time.Duration
	Leeway           time.Duration
	// SessionTTL is zero when sessions end only on logout.
	SessionTTL     time.Duration
	Argon2         PasswordConfigReport
	UpgradeOnLogin bool
	AuditEnabled   bool
	MetricsEnabled bool
	// LogoutAllSupported and SessionListingSupported reflect the session store's
	// optional capabilities.
	LogoutAllSupported      bool
	SessionListingSupported bool
	HealthProbeSupported    bool
	LintWarnings            int
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	_, canDeleteAll := e.sessions.(UserSessionDeleter)
	_, canList := e.sessions.(UserSessionLister)
	_, canPing := e.sessions.(Pinger)

	return SecurityReport{
		SigningAlgorithm: strings.ToLower(e.config.JWT.SigningMethod),
		Issuer:           e.config.JWT.Issuer,
		AccessTTL:        e.config.JWT.AccessTTL,
		Leeway:           e.config.JWT.Leeway,
		SessionTTL:       e.config.Session.TTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		UpgradeOnLogin:          e.config.Password.UpgradeOnLogin,
		AuditEnabled:            e.config.Audit.Enabled,
		MetricsEnabled:          e.config.Metrics.Enabled,
		LogoutAllSupported:      canDeleteAll,
		SessionListingSupported: canList,
		HealthProbeSupported:    canPing,
		LintWarnings:            len(e.config.Lint().BySeverity(LintWarn)),
	}
}
