package pipeline

import "fmt"

// Kind classifies every error that crosses the pipeline boundary. Lower
// level errors from the renderer, extractor, and composer are translated
// into exactly one of these before returning to the transport.
type Kind int

const (
	// KindValidation covers user-correctable input problems: oversize
	// submissions and exports with nothing accumulated.
	KindValidation Kind = iota

	// KindRender covers unparseable or unrenderable source documents and
	// an unavailable rasterizer.
	KindRender

	// KindIO covers temp-file read/write/delete failures and timeouts.
	KindIO

	// KindOversize means the composed output exceeded the outbound limit
	// and was discarded.
	KindOversize
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRender:
		return "render"
	case KindIO:
		return "io"
	case KindOversize:
		return "oversize"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the only error type the pipelines return.
type Error struct {
	Kind Kind
	Op   string // "ingest" or "export"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func failf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func fail(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
