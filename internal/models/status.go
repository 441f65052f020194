package models

// Status is the lifecycle state of a payment as reported by the gateway.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// ParseStatus maps a wire value to a Status. Unknown values map to
// StatusCreated so that new gateway states do not break older clients.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusCreated, StatusPending, StatusCompleted, StatusCancelled, StatusExpired:
		return Status(s)
	}
	return StatusCreated
}

// Terminal reports whether the status is absorbing: once a payment reaches
// it, no further transition is ever applied.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Rank orders statuses along the lifecycle graph. Transitions are only
// applied forward: created < pending < terminal.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusCompleted, StatusCancelled, StatusExpired:
		return 2
	}
	return 0
}

func (s Status) String() string {
	return string(s)
}

// UnmarshalJSON applies the forward-compatible fallback: any unrecognized
// value decodes as StatusCreated instead of failing the parse.
func (s *Status) UnmarshalJSON(data []byte) error {
	v := string(data)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	*s = ParseStatus(v)
	return nil
}
