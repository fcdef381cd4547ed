package internaldefs

import (
	"strconv"
	"strings"

	"github.com/conduit-realworld/conduitauth"
)

// BucketCount is the number of latency buckets, including +Inf.
const BucketCount = len(conduitauth.HistogramBounds) + 1

type CounterDef struct {
	ID   conduitauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   conduitauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in rendering order.
var CounterDefs = []CounterDef{
	{ID: conduitauth.MetricAuthAuthenticated, Name: "conduit_auth_authenticated_total", Help: "Requests resolved to an authenticated identity."},
	{ID: conduitauth.MetricAuthAnonymous, Name: "conduit_auth_anonymous_total", Help: "Optional-mode requests resolved to anonymous."},
	{ID: conduitauth.MetricAuthMissingToken, Name: "conduit_auth_missing_token_total", Help: "Requests without a usable Authorization header."},
	{ID: conduitauth.MetricAuthExpiredToken, Name: "conduit_auth_expired_token_total", Help: "Requests carrying an expired access token."},
	{ID: conduitauth.MetricAuthInvalidToken, Name: "conduit_auth_invalid_token_total", Help: "Requests carrying a malformed or forged access token."},
	{ID: conduitauth.MetricAuthSessionNotFound, Name: "conduit_auth_session_not_found_total", Help: "Tokens whose session no longer exists."},
	{ID: conduitauth.MetricAuthSessionExpired, Name: "conduit_auth_session_expired_total", Help: "Tokens whose session has expired."},
	{ID: conduitauth.MetricAuthInvalidUser, Name: "conduit_auth_invalid_user_total", Help: "Tokens whose user is missing or inactive."},
	{ID: conduitauth.MetricAuthUnavailable, Name: "conduit_auth_unavailable_total", Help: "Authentications aborted by a store error or cancellation."},
	{ID: conduitauth.MetricLoginSuccess, Name: "conduit_login_success_total", Help: "Successful logins."},
	{ID: conduitauth.MetricLoginFailure, Name: "conduit_login_failure_total", Help: "Failed logins."},
	{ID: conduitauth.MetricRegisterSuccess, Name: "conduit_register_success_total", Help: "Successful registrations."},
	{ID: conduitauth.MetricRegisterDuplicate, Name: "conduit_register_duplicate_total", Help: "Registrations rejected for a taken email or username."},
	{ID: conduitauth.MetricSessionCreated, Name: "conduit_session_created_total", Help: "Created sessions."},
	{ID: conduitauth.MetricTokenIssued, Name: "conduit_token_issued_total", Help: "Signed access tokens."},
	{ID: conduitauth.MetricTokenReissued, Name: "conduit_token_reissued_total", Help: "Access tokens re-signed for an existing session."},
	{ID: conduitauth.MetricUserUpdated, Name: "conduit_user_updated_total", Help: "Profile updates."},
	{ID: conduitauth.MetricPasswordRehashed, Name: "conduit_password_rehashed_total", Help: "Password hashes upgraded on login."},
	{ID: conduitauth.MetricLogout, Name: "conduit_logout_total", Help: "Single-session logouts."},
	{ID: conduitauth.MetricLogoutAll, Name: "conduit_logout_all_total", Help: "Logout-all operations."},
}

var HistogramDefs = []HistogramDef{
	{ID: conduitauth.MetricAuthenticateLatency, Name: "conduit_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the Prometheus le labels, ending in +Inf.
var HistogramBounds = func() []string {
	out := make([]string, 0, BucketCount)
	for _, d := range conduitauth.HistogramBounds {
		out = append(out, strconv.FormatFloat(d.Seconds(), 'g', -1, 64))
	}
	return append(out, "+Inf")
}()

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = func() []string {
	out := make([]string, 0, BucketCount)
	for _, le := range HistogramBounds {
		if le == "+Inf" {
			out = append(out, "inf")
			continue
		}
		out = append(out, strings.ReplaceAll(le, ".", "_"))
	}
	return out
}()

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
