package domain

import "strings"

// Persona is the mentor role assigned to a sender for the whole conversation.
type Persona string

const (
	PersonaLocal   Persona = "local"
	PersonaRefugee Persona = "refugee"
	PersonaGeneral Persona = "general"
)

// Personas lists every persona in selection order.
var Personas = []Persona{PersonaLocal, PersonaRefugee, PersonaGeneral}

// ParsePersona maps a stored persona label to its canonical value. Older
// records used labels such as "local_mentor", "refugee mentor" and "AI Mentor".
func ParsePersona(s string) (Persona, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "local_mentor", "local mentor":
		return PersonaLocal, true
	case "refugee", "refugee_mentor", "refugee mentor":
		return PersonaRefugee, true
	case "general", "ai", "ai mentor", "ai_mentor":
		return PersonaGeneral, true
	}
	return "", false
}

func (p Persona) String() string {
	return string(p)
}
