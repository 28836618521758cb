package domain

// Exchange is one recorded inbound/outbound message pair for a sender.
type Exchange struct {
	SenderKey    string
	SequenceKey  string
	ReceivedText string
	SentText     string
	Persona      string
	DisplayName  string
}

// Inbound is a parsed messaging webhook event. Empty fields mean the value
// was absent from the request.
type Inbound struct {
	From        string
	Body        string
	ProfileName string
}
