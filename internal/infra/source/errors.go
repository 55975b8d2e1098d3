package source

import (
	"errors"
	"fmt"
	"strings"
)

// Upstream reason codes the harvester reacts to.
const (
	ReasonCommentsDisabled  = "commentsDisabled"
	ReasonProcessingFailure = "processingFailure"
)

// Error is a structured upstream failure carrying machine-readable reasons.
type Error struct {
	Code    int
	Message string
	Reasons []string
}

func (e *Error) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("source error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("source error %d (%s): %s", e.Code, strings.Join(e.Reasons, ","), e.Message)
}

// Reason returns the first structured reason found in err's chain, or ""
// when err carries no *Error or the error has no reasons.
//
// Only the first reason is inspected; when an upstream returns several
// reasons no precedence between them is assumed.
func Reason(err error) string {
	var serr *Error
	if !errors.As(err, &serr) || len(serr.Reasons) == 0 {
		return ""
	}
	return serr.Reasons[0]
}
