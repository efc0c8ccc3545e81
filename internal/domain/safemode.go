package domain

import "time"

// SafeModeReason names what tripped safe mode, for the status surface and
// audit log.
type SafeModeReason string

const (
	SafeModeDrift          SafeModeReason = "drift_unresolved"
	SafeModeBrokerReject   SafeModeReason = "broker_reject"
	SafeModeServiceError   SafeModeReason = "service_error"
	SafeModeIntegrity      SafeModeReason = "integrity_error"
	SafeModeOperator       SafeModeReason = "operator_disable"
)

// SafeModeState is the persisted, process-crash-surviving latch that halts
// new order placement until an operator explicitly clears it. It is never
// cleared by any automatic condition recovering; only Clear does.
type SafeModeState struct {
	Active    bool
	Reason    SafeModeReason
	Detail    string
	TrippedAt time.Time
	RunID     string
}

// Trip latches safe mode. Calling Trip while already active overwrites the
// reason with the newest trigger but never un-latches.
func (s *SafeModeState) Trip(reason SafeModeReason, detail string, at time.Time, runID string) {
	s.Active = true
	s.Reason = reason
	s.Detail = detail
	s.TrippedAt = at
	s.RunID = runID
}

// Clear removes the latch. Only an explicit operator reset (the CLI's
// --clear-safe flag) may call this.
func (s *SafeModeState) Clear() {
	*s = SafeModeState{}
}
