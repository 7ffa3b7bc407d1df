package trial

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/credential"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/ojp"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/pkg/http/client"
)

const (
	DefaultUserAgent = "CrowPanel-OEV-Display/1.0"
	contentTypeXML   = "application/xml"

	// MaxDetail bounds the response excerpt kept in an outcome.
	MaxDetail = 500
)

// Executor performs a single POST per trial and classifies the exchange.
type Executor struct {
	client    client.Interface
	userAgent string
}

func NewExecutor(c client.Interface, userAgent string) *Executor {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Executor{
		client:    c,
		userAgent: userAgent,
	}
}

// Execute sends body to the trial's endpoint. It never retries and never
// returns an error: every failure is expressed as an Outcome kind.
func (e *Executor) Execute(ctx context.Context, t Trial, body string, cred credential.Credential, deadline time.Duration) Outcome {
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	headers := map[string]string{
		"Authorization": t.Auth.Prefix() + cred.Value(),
		"Content-Type":  contentTypeXML,
		"Accept":        contentTypeXML,
		"User-Agent":    e.userAgent,
	}

	log.Debug().
		Str("trial", t.Name).
		Str("endpoint", t.EndpointURL).
		Str("dialect", t.Dialect.String()).
		Str("auth", t.Auth.String()).
		Str("credential_preview", cred.Preview()).
		Dur("deadline", deadline).
		Msg("Executing endpoint trial")

	start := time.Now()
	resp, err := e.client.Post(ctx, t.EndpointURL, []byte(body), headers)
	elapsed := time.Since(start)

	var outcome Outcome
	if err != nil {
		outcome = classifyError(err)
	} else {
		outcome = classifyResponse(t, resp)
	}
	outcome.Elapsed = elapsed

	event := log.Info()
	if outcome.Kind != KindSuccess {
		event = log.Warn()
	}
	event.
		Str("trial", t.Name).
		Str("outcome", outcome.Kind.String()).
		Int("status", outcome.StatusCode).
		Int("matches", len(outcome.Matches)).
		Dur("elapsed", elapsed).
		Bool("parse_failure", outcome.ParseFailure).
		Msg("Endpoint trial finished")

	return outcome
}

func classifyError(err error) Outcome {
	if isTimeout(err) {
		return Outcome{Kind: KindTimeout, Detail: err.Error()}
	}
	return Outcome{Kind: KindTransientError, Detail: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyResponse(t Trial, resp *client.Response) Outcome {
	snippet := Snippet(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return parseSuccess(t, resp)
	case http.StatusBadRequest:
		return Outcome{Kind: KindBadRequest, StatusCode: resp.StatusCode, Detail: snippet}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Outcome{Kind: KindAuthRejected, StatusCode: resp.StatusCode, Detail: snippet}
	case http.StatusNotFound:
		return Outcome{Kind: KindNotFound, StatusCode: resp.StatusCode, Detail: snippet}
	default:
		return Outcome{
			Kind:       KindTransientError,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet),
		}
	}
}

func parseSuccess(t Trial, resp *client.Response) Outcome {
	matches, err := parseMatches(string(resp.Body), t.Dialect)
	if err != nil {
		log.Warn().
			Err(err).
			Str("trial", t.Name).
			Bool("parse_failure", true).
			Str("body", Snippet(resp.Body)).
			Msg("Success response could not be parsed")
		return Outcome{
			Kind:         KindTransientError,
			StatusCode:   resp.StatusCode,
			Detail:       "unparseable success body",
			ParseFailure: true,
		}
	}
	return Outcome{Kind: KindSuccess, StatusCode: resp.StatusCode, Matches: matches}
}

func parseMatches(raw string, d ojp.Dialect) ([]models.StopMatch, error) {
	normalized, err := ojp.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return ojp.Extract(normalized, d)
}

// Snippet trims a response body to at most MaxDetail characters.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if r := []rune(s); len(r) > MaxDetail {
		return string(r[:MaxDetail])
	}
	return s
}
