package skill

import "errors"

var (
	// ErrUnknownAction: action id is not in the catalog.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInsufficientLevel: skill level is below the action's requirement.
	ErrInsufficientLevel = errors.New("insufficient level")
)

// DomainError is an expected, user-facing rejection.
// Kind is one of the sentinel errors above; Message is shown to the player.
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }

// IsDomainError reports whether err is a user-facing rejection
// (as opposed to a system failure).
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
