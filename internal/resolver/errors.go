package resolver

import "fmt"

// Kind discriminates rejection causes so the HTTP layer can label them
// without parsing message text. All kinds map to a 400 response.
type Kind int

const (
	KindMalformed Kind = iota
	KindResolution
	KindCellLimit
	KindInvalidCell
	KindEmptyCoverage
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindResolution:
		return "resolution_out_of_range"
	case KindCellLimit:
		return "cell_limit"
	case KindInvalidCell:
		return "invalid_cell"
	case KindEmptyCoverage:
		return "empty_coverage"
	default:
		return "unknown"
	}
}

// Error is a request rejection. The message is caller-facing and returned
// verbatim in the response body.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, msg: fmt.Sprintf(format, args...)}
}
