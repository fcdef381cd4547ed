package conduitauth

// Mode selects how an authentication failure is reported.
type Mode uint8

const (
	// ModeRequired reports every failure as Rejected.
	ModeRequired Mode = iota
	// ModeOptional folds every failure into Anonymous.
	ModeOptional
)

func (m Mode) String() string {
	switch m {
	case ModeRequired:
		return "required"
	case ModeOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// Reason classifies a rejected authentication attempt. Reasons are for logs and
// metrics; clients only ever see a uniform 401.
type Reason string

const (
	ReasonMissingToken    Reason = "missing_token"
	ReasonExpiredToken    Reason = "expired_token"
	ReasonInvalidToken    Reason = "invalid_token"
	ReasonSessionNotFound Reason = "session_not_found"
	ReasonSessionExpired  Reason = "session_expired"
	ReasonInvalidUser     Reason = "invalid_user"
	// ReasonUnavailable means a backing store failed or the request context ended.
	ReasonUnavailable Reason = "unavailable"
)

// Result is the outcome of Authenticate: exactly one of Authenticated, Anonymous, or
// Rejected. Handle it with a type switch.
type Result interface {
	isResult()
}

// Authenticated carries the resolved identity.
type Authenticated struct {
	Identity Identity
}

// Anonymous is an Optional-mode request without a usable credential.
type Anonymous struct{}

// Rejected is a Required-mode failure.
type Rejected struct {
	Reason Reason
}

func (Authenticated) isResult() {}
func (Anonymous) isResult()     {}
func (Rejected) isResult()      {}

// IdentityOf returns the identity inside r, if r is Authenticated.
func IdentityOf(r Result) (Identity, bool) {
	a, ok := r.(Authenticated)
	if !ok {
		return Identity{}, false
	}
	return a.Identity, true
}
