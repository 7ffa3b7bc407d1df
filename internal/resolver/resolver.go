package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/credential"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/ojp"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
)

const DefaultTrialTimeout = 30 * time.Second

// ErrNoTrials is returned when Resolve is given an empty candidate list.
var ErrNoTrials = errors.New("no endpoint trials configured")

// Executor runs one trial. *trial.Executor is the production implementation.
type Executor interface {
	Execute(ctx context.Context, t trial.Trial, body string, cred credential.Credential, deadline time.Duration) trial.Outcome
}

var _ Executor = (*trial.Executor)(nil)

type Options struct {
	// Budget bounds the whole resolution. Zero leaves only the caller's
	// context in charge.
	Budget time.Duration
	// TrialTimeout bounds each trial; the remaining budget caps it further.
	TrialTimeout time.Duration
	// MinInterval spaces out consecutive requests. Zero disables pacing.
	MinInterval time.Duration

	RequestorRef string

	Now          func() time.Time
	NewMessageID func() string
}

// Result is the first trial that returned at least one stop.
type Result struct {
	Trial    trial.Trial
	Matches  []models.StopMatch
	Attempts []Attempt
}

// Resolver walks a candidate list in order until one trial yields stops.
type Resolver struct {
	executor Executor
	opts     Options
	limiter  *rate.Limiter
}

func New(executor Executor, opts Options) *Resolver {
	if opts.TrialTimeout <= 0 {
		opts.TrialTimeout = DefaultTrialTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewMessageID == nil {
		opts.NewMessageID = uuid.NewString
	}

	r := &Resolver{
		executor: executor,
		opts:     opts,
	}
	if opts.MinInterval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	return r
}

// Resolve returns the matches of the first trial that produced any. When no
// trial does, the error is an *AllFailedError describing every attempt.
func (r *Resolver) Resolve(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if cred.IsZero() {
		return nil, fmt.Errorf("resolving %q: %w", q.StopName, credential.ErrMissing)
	}
	if len(trials) == 0 {
		return nil, ErrNoTrials
	}

	if r.opts.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Budget)
		defer cancel()
	}

	attempts := make([]Attempt, 0, len(trials))
	for i, t := range trials {
		if err := r.wait(ctx); err != nil {
			log.Warn().
				Err(err).
				Str("stop_name", q.StopName).
				Int("attempted", len(attempts)).
				Int("remaining", len(trials)-i).
				Msg("Resolution budget exhausted")
			return nil, &AllFailedError{
				Query:           q,
				Attempts:        attempts,
				BudgetExhausted: true,
				NotAttempted:    trials[i:],
			}
		}

		outcome := r.run(ctx, q, t, cred)
		attempts = append(attempts, Attempt{Trial: t, Outcome: outcome})

		if outcome.Found() {
			log.Info().
				Str("stop_name", q.StopName).
				Str("trial", t.Name).
				Int("matches", len(outcome.Matches)).
				Int("attempts", len(attempts)).
				Msg("Resolved stop")
			return &Result{
				Trial:    t,
				Matches:  outcome.Matches,
				Attempts: attempts,
			}, nil
		}
	}

	err := &AllFailedError{Query: q, Attempts: attempts}
	log.Warn().
		Str("stop_name", q.StopName).
		Int("attempts", len(attempts)).
		Str("pattern", string(err.Pattern())).
		Msg("All endpoint trials failed")
	return nil, err
}

func (r *Resolver) run(ctx context.Context, q models.StopQuery, t trial.Trial, cred credential.Credential) trial.Outcome {
	body, err := ojp.BuildRequest(t.Dialect, q, r.opts.Now(), ojp.RequestOptions{
		RequestorRef: r.opts.RequestorRef,
		MessageID:    r.opts.NewMessageID(),
	})
	if err != nil {
		return trial.Outcome{Kind: trial.KindBadRequest, Detail: "building request: " + err.Error()}
	}
	return r.executor.Execute(ctx, t, body, cred, r.opts.TrialTimeout)
}

func (r *Resolver) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
