package usecase

// Phase is the conversation stage derived from a sender's exchange count.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseFirst
	PhaseFollowUp
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseFirst:
		return "first"
	case PhaseFollowUp:
		return "followup"
	case PhaseExhausted:
		return "exhausted"
	}
	return "unknown"
}

// PhaseFor maps the number of recorded exchanges to a phase. A
// maxInteractions of zero or less disables the cap.
func PhaseFor(count, maxInteractions int) Phase {
	if maxInteractions > 0 && count >= maxInteractions {
		return PhaseExhausted
	}
	switch count {
	case 0:
		return PhaseNew
	case 1:
		return PhaseFirst
	default:
		return PhaseFollowUp
	}
}
