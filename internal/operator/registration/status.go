package registration

// Status is the operator's registration state with the AVS
type Status int32

const (
	Unregistered Status = iota
	PendingRegistration
	Registered
)

func (s Status) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case PendingRegistration:
		return "pending"
	case Registered:
		return "registered"
	default:
		return "unknown"
	}
}
