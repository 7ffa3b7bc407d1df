package trial

import (
	"fmt"
	"time"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
)

// Kind classifies the result of one trial.
type Kind int

const (
	KindSuccess Kind = iota + 1
	KindAuthRejected
	KindBadRequest
	KindNotFound
	KindTransientError
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindAuthRejected:
		return "AuthRejected"
	case KindBadRequest:
		return "BadRequest"
	case KindNotFound:
		return "NotFound"
	case KindTransientError:
		return "TransientError"
	case KindTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is built once per execution and not modified afterwards. Matches
// is only set for KindSuccess.
type Outcome struct {
	Kind         Kind
	Matches      []models.StopMatch
	Detail       string
	StatusCode   int
	Elapsed      time.Duration
	ParseFailure bool
}

// Found reports a success that carries at least one match.
func (o Outcome) Found() bool {
	return o.Kind == KindSuccess && len(o.Matches) > 0
}

func (o Outcome) String() string {
	s := o.Kind.String()
	if o.Kind == KindSuccess {
		s = fmt.Sprintf("%s (%d matches)", s, len(o.Matches))
	}
	if o.StatusCode != 0 && o.Kind != KindSuccess {
		s = fmt.Sprintf("%s (HTTP %d)", s, o.StatusCode)
	}
	if o.Detail != "" {
		s += ": " + o.Detail
	}
	return s
}
