package domain

// Decision is the outcome of a permission check. Reason is set only on
// denial and is written verbatim to the audit trail.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Caller identifies who is behind a tool call.
type Caller struct {
	UserID string
	Role   string
}
