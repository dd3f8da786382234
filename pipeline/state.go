package pipeline

// State tracks a single ingestion call through its phases. Transitions are
// strictly forward; any failure jumps to StateFailed after cleanup.
type State int

const (
	StateReceived State = iota
	StateSizeChecked
	StateRendered
	StateExtracted
	StateAppended
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateSizeChecked:
		return "size_checked"
	case StateRendered:
		return "rendered"
	case StateExtracted:
		return "extracted"
	case StateAppended:
		return "appended"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
