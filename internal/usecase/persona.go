package usecase

import (
	"log/slog"
	"math/rand"

	"mentor-relay/internal/domain"
)

// PersonaSelector assigns a persona on first contact and recovers it from the
// first recorded exchange afterwards.
type PersonaSelector struct {
	intn func(n int) int
}

func NewPersonaSelector() *PersonaSelector {
	return &PersonaSelector{intn: rand.Intn}
}

// Select never reselects for a sender that already has history.
func (s *PersonaSelector) Select(history []domain.Exchange) domain.Persona {
	if len(history) == 0 {
		return domain.Personas[s.intn(len(domain.Personas))]
	}
	p, ok := domain.ParsePersona(history[0].Persona)
	if !ok {
		slog.Warn("unrecognised stored persona, using general",
			"phone", history[0].SenderKey, "persona", history[0].Persona)
		return domain.PersonaGeneral
	}
	return p
}
