package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation after Close, Save & Exit or
	// Submit.
	ErrClosed = errors.New("wizard: closed")
	// ErrBusy is returned when an explicit action starts while another one is
	// still waiting on validation or persistence.
	ErrBusy = errors.New("wizard: action in progress")
	// ErrNotReview is returned by Submit outside the review page.
	ErrNotReview = errors.New("wizard: submit is only available on the review page")
	// ErrFieldDisabled is returned when a mirrored field is edited directly.
	ErrFieldDisabled = errors.New("wizard: field is disabled")
	// ErrInvalidDefinition wraps structural definition errors.
	ErrInvalidDefinition = errors.New("wizard: invalid definition")
)

// Rejection is returned by a Submitter when the receiving side refuses the
// record with field errors keyed by its own paths. Submit maps them onto the
// wizard's fields and shows them like validation errors.
type Rejection struct {
	Fields map[string][]string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("wizard: submission rejected with %d field errors", len(r.Fields))
}
