package internaldefs

import (
	"github.com/MrEthical07/fleetAuth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   fleetAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   fleetAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: fleetAuth.MetricRegisterSuccess, Name: "fleetauth_register_success_total", Help: "Tenant registrations that persisted an account."},
	{ID: fleetAuth.MetricRegisterDuplicate, Name: "fleetauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: fleetAuth.MetricRegisterFailure, Name: "fleetauth_register_failure_total", Help: "Registrations aborted by validation, company provisioning or storage faults."},
	{ID: fleetAuth.MetricVerifyCodeSent, Name: "fleetauth_verify_code_sent_total", Help: "Verification codes issued."},
	{ID: fleetAuth.MetricVerifySuccess, Name: "fleetauth_verify_success_total", Help: "Successful verification code checks."},
	{ID: fleetAuth.MetricVerifyFailure, Name: "fleetauth_verify_failure_total", Help: "Mismatched verification code checks."},
	{ID: fleetAuth.MetricVerifyBlocked, Name: "fleetauth_verify_blocked_total", Help: "Accounts blocked after repeated bad codes."},
	{ID: fleetAuth.MetricLoginSuccess, Name: "fleetauth_login_success_total", Help: "Successful tenant logins."},
	{ID: fleetAuth.MetricLoginFailure, Name: "fleetauth_login_failure_total", Help: "Rejected tenant logins other than lock refusals."},
	{ID: fleetAuth.MetricLoginLockEntered, Name: "fleetauth_login_lock_entered_total", Help: "Temporary locks entered after repeated bad passwords."},
	{ID: fleetAuth.MetricLoginRejectedLocked, Name: "fleetauth_login_rejected_locked_total", Help: "Logins refused while a lock was in force."},
	{ID: fleetAuth.MetricMachineRegister, Name: "fleetauth_machine_register_total", Help: "Machine account registrations."},
	{ID: fleetAuth.MetricMachineLoginSuccess, Name: "fleetauth_machine_login_success_total", Help: "Successful machine logins."},
	{ID: fleetAuth.MetricMachineLoginFailure, Name: "fleetauth_machine_login_failure_total", Help: "Failed machine logins."},
	{ID: fleetAuth.MetricTokenInvalid, Name: "fleetauth_token_invalid_total", Help: "Rejected bearer tokens."},
	{ID: fleetAuth.MetricNotifyFailure, Name: "fleetauth_notify_failure_total", Help: "Notifications the notifier failed to deliver."},
	{ID: fleetAuth.MetricNotifyDropped, Name: "fleetauth_notify_dropped_total", Help: "Notifications dropped by a full queue."},
	{ID: fleetAuth.MetricRecoveryRequest, Name: "fleetauth_recovery_request_total", Help: "Password recovery requests."},
	{ID: fleetAuth.MetricRecoverySuccess, Name: "fleetauth_recovery_success_total", Help: "Completed password resets."},
	{ID: fleetAuth.MetricRecoveryFailure, Name: "fleetauth_recovery_failure_total", Help: "Rejected password reset attempts."},
	{ID: fleetAuth.MetricAccountUnblocked, Name: "fleetauth_account_unblocked_total", Help: "Administrative unblocks."},
	{ID: fleetAuth.MetricAccountUnlocked, Name: "fleetauth_account_unlocked_total", Help: "Administrative unlocks."},
	{ID: fleetAuth.MetricPasswordRehash, Name: "fleetauth_password_rehash_total", Help: "Password hashes upgraded on login."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: fleetAuth.MetricAuthenticateLatency, Name: "fleetauth_authenticate_latency_seconds", Help: "Bearer token authentication latency."},
}

// BucketCount is the number of histogram buckets, the last one unbounded.
const BucketCount = 8

// HistogramUpperBounds are the finite upper bounds in seconds of the first BucketCount-1
// buckets.
var HistogramUpperBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix is the instrument name suffix of each bucket.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
