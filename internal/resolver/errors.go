package resolver

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
)

// Attempt pairs a trial with the outcome it produced.
type Attempt struct {
	Trial   trial.Trial
	Outcome trial.Outcome
}

// Pattern is the diagnosis drawn from a set of failed attempts.
type Pattern string

const (
	PatternCredential      Pattern = "credential"
	PatternNetwork         Pattern = "network"
	PatternNoMatches       Pattern = "no_matches"
	PatternBudgetExhausted Pattern = "budget_exhausted"
	PatternMixed           Pattern = "mixed"
)

// Hint is the operator-facing advice for the pattern.
func (p Pattern) Hint() string {
	switch p {
	case PatternCredential:
		return "Every endpoint rejected the credential. Check that the API key is the token (not the token hash) and that it is subscribed to the OJP API."
	case PatternNetwork:
		return "Every endpoint timed out or failed in transit. Check network connectivity and the endpoint URLs."
	case PatternNoMatches:
		return "The service answered but found no stops. Check the spelling of the stop name."
	case PatternBudgetExhausted:
		return "The time budget ran out before every endpoint could be tried. Increase the budget or the per-trial timeout."
	default:
		return "Endpoints failed for different reasons. See the per-trial results above."
	}
}

// AllFailedError is returned when no trial produced a non-empty success.
type AllFailedError struct {
	Query           models.StopQuery
	Attempts        []Attempt
	BudgetExhausted bool
	NotAttempted    []trial.Trial
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("no endpoint returned stops for %q after %d attempts (%s)", e.Query.StopName, len(e.Attempts), e.Pattern())
}

func (e *AllFailedError) Pattern() Pattern {
	if e.BudgetExhausted {
		return PatternBudgetExhausted
	}
	if len(e.Attempts) == 0 {
		return PatternMixed
	}
	if e.all(func(k trial.Kind) bool { return k == trial.KindAuthRejected }) {
		return PatternCredential
	}
	if e.all(func(k trial.Kind) bool { return k == trial.KindTimeout || k == trial.KindTransientError }) {
		return PatternNetwork
	}
	if e.all(func(k trial.Kind) bool { return k == trial.KindSuccess }) {
		return PatternNoMatches
	}
	return PatternMixed
}

func (e *AllFailedError) all(match func(trial.Kind) bool) bool {
	for _, a := range e.Attempts {
		if !match(a.Outcome.Kind) {
			return false
		}
	}
	return true
}

// Report renders every attempt and the diagnosis for an operator.
func (e *AllFailedError) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "No endpoint returned stops for %q.\n", e.Query.StopName)
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, "  %d. %-20s %s/%s %s\n     -> %s (%s)\n",
			i+1, a.Trial.Name, a.Trial.Dialect, a.Trial.Auth, a.Trial.EndpointURL,
			a.Outcome, a.Outcome.Elapsed.Round(time.Millisecond))
	}
	if len(e.NotAttempted) > 0 {
		names := make([]string, 0, len(e.NotAttempted))
		for _, t := range e.NotAttempted {
			names = append(names, t.Name)
		}
		fmt.Fprintf(&b, "  Not attempted: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Diagnosis (%s): %s\n", e.Pattern(), e.Pattern().Hint())
	return b.String()
}
