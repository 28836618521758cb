package domain

// MessageStatus is a delivery status reported by the messaging transport.
type MessageStatus string

const (
	StatusAccepted        MessageStatus = "accepted"
	StatusScheduled       MessageStatus = "scheduled"
	StatusQueued          MessageStatus = "queued"
	StatusSending         MessageStatus = "sending"
	StatusSent            MessageStatus = "sent"
	StatusDeliveryUnknown MessageStatus = "delivery_unknown"
	StatusDelivered       MessageStatus = "delivered"
	StatusUndelivered     MessageStatus = "undelivered"
	StatusFailed          MessageStatus = "failed"
	StatusRead            MessageStatus = "read"
	StatusCanceled        MessageStatus = "canceled"
)

// Terminal reports whether no further state change is expected.
func (s MessageStatus) Terminal() bool {
	switch s {
	case StatusDeliveryUnknown, StatusDelivered, StatusUndelivered, StatusFailed, StatusRead, StatusCanceled:
		return true
	}
	return false
}

// Successful reports whether the message counts as delivered to the sender.
// "sent" is accepted because polling may run out before a receipt arrives.
func (s MessageStatus) Successful() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// SentMessage identifies a message accepted by the transport.
type SentMessage struct {
	SID    string
	Status MessageStatus
}
