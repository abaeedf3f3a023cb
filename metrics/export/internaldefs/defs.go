package internaldefs

import (
	"github.com/MrEthical07/jwtauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   jwtauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   jwtauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: jwtauth.MetricTokenIssued, Name: "jwtauth_token_issued_total", Help: "Tokens encoded for a qualifying login."},
	{ID: jwtauth.MetricTokenIssueSkipped, Name: "jwtauth_token_issue_skipped_total", Help: "Logins that matched no dispatch rule."},
	{ID: jwtauth.MetricTokenEncodeFailure, Name: "jwtauth_token_issue_failure_total", Help: "Qualifying logins whose token could not be issued."},
	{ID: jwtauth.MetricTokenDispatched, Name: "jwtauth_token_dispatched_total", Help: "Tokens written to a response."},
	{ID: jwtauth.MetricRevocationSuccess, Name: "jwtauth_revocation_success_total", Help: "Tokens revoked."},
	{ID: jwtauth.MetricRevocationSkipped, Name: "jwtauth_revocation_skipped_total", Help: "Revocation requests with an undecodable token."},
	{ID: jwtauth.MetricRevocationFailure, Name: "jwtauth_revocation_failure_total", Help: "Decoded tokens the revocation strategy failed to revoke."},
	{ID: jwtauth.MetricAuthenticateSuccess, Name: "jwtauth_authenticate_success_total", Help: "Accepted tokens."},
	{ID: jwtauth.MetricAuthenticateFailure, Name: "jwtauth_authenticate_failure_total", Help: "Rejected tokens, revocation excluded."},
	{ID: jwtauth.MetricAuthenticateRevoked, Name: "jwtauth_authenticate_revoked_total", Help: "Revoked tokens presented for authentication."},
}

var HistogramDefs = []HistogramDef{
	{ID: jwtauth.MetricDecodeLatency, Name: "jwtauth_decode_latency_seconds", Help: "Token decode latency."},
}

// HistogramBounds are the upper bounds of the engine's decode buckets, in seconds.
// The last bucket is unbounded.
var HistogramBounds = []float64{
	0.00005,
	0.0001,
	0.00025,
	0.0005,
	0.001,
	0.005,
	0.025,
}

// HistogramBoundSuffix names each bucket in instrument names, "inf" included.
var HistogramBoundSuffix = []string{
	"0_00005",
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_005",
	"0_025",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the engine's bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
