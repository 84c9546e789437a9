package domain

// Phase is the lifecycle phase of a trip attempt.
type Phase string

const (
	PhaseWaiting    Phase = "WAITING"
	PhaseMonitoring Phase = "MONITORING"
	PhaseTraveling  Phase = "TRAVELING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseCancelled  Phase = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}
