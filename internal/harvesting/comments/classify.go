package comments

import (
	"errors"

	"github.com/vietddude/harvester/internal/harvesting/replies"
	"github.com/vietddude/harvester/internal/infra/source"
)

// ErrorAction determines how a failed harvest attempt is handled.
type ErrorAction int

const (
	// ActionFatal propagates the error to the caller.
	ActionFatal ErrorAction = iota
	// ActionSkip ends the harvest successfully with no threads.
	ActionSkip
	// ActionRestart waits and restarts the harvest from scratch.
	ActionRestart
)

func (a ErrorAction) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionRestart:
		return "restart"
	default:
		return "fatal"
	}
}

// ClassifyError determines the action for a failed harvest attempt.
// Only the first upstream reason is inspected. Reply resolution failures
// are always fatal, whatever their reason.
func ClassifyError(err error) ErrorAction {
	if err == nil || errors.Is(err, replies.ErrResolveReplies) {
		return ActionFatal
	}

	switch source.Reason(err) {
	case source.ReasonCommentsDisabled:
		return ActionSkip
	case source.ReasonProcessingFailure:
		return ActionRestart
	default:
		return ActionFatal
	}
}
