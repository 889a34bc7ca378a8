// Package domain holds the request lifecycle vocabulary: status state
// machine, document types, delivery methods and the pricing table.
package domain

// Status is a request's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusRejected:
		return Status(raw), true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransition reports whether moving from s to target is a legal forward
// move. The machine is strictly monotonic: pending → processing →
// completed|rejected, with a direct pending → rejected override for
// rejections before processing starts. Backward moves never validate.
func (s Status) CanTransition(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusRejected
	case StatusProcessing:
		return target == StatusCompleted || target == StatusRejected
	default:
		return false
	}
}
