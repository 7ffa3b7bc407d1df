package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/credential"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/ojp"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/pkg/http/client"
)

var testCred = credential.New("test-api-key-0123456789abcdefghijklmnop")

type call struct {
	trial    string
	body     string
	deadline time.Duration
}

type mockExecutor struct {
	executeFn func(ctx context.Context, t trial.Trial, body string) trial.Outcome
	calls     []call
}

func (m *mockExecutor) Execute(ctx context.Context, t trial.Trial, body string, cred credential.Credential, deadline time.Duration) trial.Outcome {
	m.calls = append(m.calls, call{trial: t.Name, body: body, deadline: deadline})
	if m.executeFn != nil {
		return m.executeFn(ctx, t, body)
	}
	return trial.Outcome{Kind: trial.KindSuccess, StatusCode: 200}
}

func (m *mockExecutor) countFor(name string) int {
	n := 0
	for _, c := range m.calls {
		if c.trial == name {
			n++
		}
	}
	return n
}

func byName(outcomes map[string]trial.Outcome) func(ctx context.Context, t trial.Trial, body string) trial.Outcome {
	return func(ctx context.Context, t trial.Trial, body string) trial.Outcome {
		return outcomes[t.Name]
	}
}

func fourTrials() []trial.Trial {
	return []trial.Trial{
		{Name: "t1", EndpointURL: "https://a/1", Dialect: ojp.DialectV2Native, Auth: trial.AuthBearer},
		{Name: "t2", EndpointURL: "https://a/2", Dialect: ojp.DialectV1Mixed, Auth: trial.AuthBearer},
		{Name: "t3", EndpointURL: "https://a/2", Dialect: ojp.DialectV1Mixed, Auth: trial.AuthNone},
		{Name: "t4", EndpointURL: "https://a/2", Dialect: ojp.DialectV1Mixed, Auth: trial.AuthToken},
	}
}

func bern() models.StopQuery {
	return models.NewStopQuery("Bern", 10, "de")
}

func TestResolveShortCircuitsOnFirstNonEmptySuccess(t *testing.T) {
	t.Parallel()

	match := models.StopMatch{DisplayName: "Bern (Bern)", StopReference: "8507000"}
	exec := &mockExecutor{executeFn: byName(map[string]trial.Outcome{
		"t1": {Kind: trial.KindAuthRejected, StatusCode: 403},
		"t2": {Kind: trial.KindSuccess, StatusCode: 200},
		"t3": {Kind: trial.KindSuccess, StatusCode: 200, Matches: []models.StopMatch{match}},
		"t4": {Kind: trial.KindSuccess, StatusCode: 200, Matches: []models.StopMatch{match}},
	})}

	result, err := New(exec, Options{}).Resolve(context.Background(), bern(), fourTrials(), testCred)
	require.NoError(t, err)

	assert.Equal(t, "t3", result.Trial.Name)
	assert.Equal(t, []models.StopMatch{match}, result.Matches)
	assert.Len(t, result.Attempts, 3)
	assert.Equal(t, 1, exec.countFor("t1"))
	assert.Equal(t, 1, exec.countFor("t2"))
	assert.Equal(t, 1, exec.countFor("t3"))
	assert.Equal(t, 0, exec.countFor("t4"))
	for _, c := range exec.calls {
		assert.Equal(t, DefaultTrialTimeout, c.deadline)
	}
}

func TestResolvePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outcomes map[string]trial.Outcome
		want     Pattern
	}{
		{
			name: "all auth rejected",
			outcomes: map[string]trial.Outcome{
				"t1": {Kind: trial.KindAuthRejected, StatusCode: 401},
				"t2": {Kind: trial.KindAuthRejected, StatusCode: 403},
				"t3": {Kind: trial.KindAuthRejected, StatusCode: 403},
				"t4": {Kind: trial.KindAuthRejected, StatusCode: 403},
			},
			want: PatternCredential,
		},
		{
			name: "network",
			outcomes: map[string]trial.Outcome{
				"t1": {Kind: trial.KindTimeout},
				"t2": {Kind: trial.KindTransientError, Detail: "connection refused"},
				"t3": {Kind: trial.KindTimeout},
				"t4": {Kind: trial.KindTransientError, StatusCode: 502},
			},
			want: PatternNetwork,
		},
		{
			name: "no matches",
			outcomes: map[string]trial.Outcome{
				"t1": {Kind: trial.KindSuccess, StatusCode: 200},
				"t2": {Kind: trial.KindSuccess, StatusCode: 200},
				"t3": {Kind: trial.KindSuccess, StatusCode: 200},
				"t4": {Kind: trial.KindSuccess, StatusCode: 200},
			},
			want: PatternNoMatches,
		},
		{
			name: "mixed",
			outcomes: map[string]trial.Outcome{
				"t1": {Kind: trial.KindNotFound, StatusCode: 404},
				"t2": {Kind: trial.KindBadRequest, StatusCode: 400},
				"t3": {Kind: trial.KindAuthRejected, StatusCode: 403},
				"t4": {Kind: trial.KindTimeout},
			},
			want: PatternMixed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exec := &mockExecutor{executeFn: byName(tt.outcomes)}
			result, err := New(exec, Options{}).Resolve(context.Background(), bern(), fourTrials(), testCred)
			require.Error(t, err)
			assert.Nil(t, result)

			var allFailed *AllFailedError
			require.True(t, errors.As(err, &allFailed))
			assert.Equal(t, tt.want, allFailed.Pattern())
			assert.False(t, allFailed.BudgetExhausted)
			require.Len(t, allFailed.Attempts, 4)
			for i, a := range allFailed.Attempts {
				assert.Equal(t, fmt.Sprintf("t%d", i+1), a.Trial.Name)
				assert.Equal(t, tt.outcomes[a.Trial.Name].Kind, a.Outcome.Kind)
			}

			report := allFailed.Report()
			assert.Contains(t, report, tt.want.Hint())
			for _, tr := range fourTrials() {
				assert.Contains(t, report, tr.Name)
			}
		})
	}
}

func TestResolveBudgetExhausted(t *testing.T) {
	t.Parallel()

	exec := &mockExecutor{executeFn: func(ctx context.Context, t trial.Trial, body string) trial.Outcome {
		<-ctx.Done()
		return trial.Outcome{Kind: trial.KindTimeout, Detail: ctx.Err().Error()}
	}}

	r := New(exec, Options{Budget: 50 * time.Millisecond, TrialTimeout: 10 * time.Second})
	start := time.Now()
	_, err := r.Resolve(context.Background(), bern(), fourTrials(), testCred)
	assert.Less(t, time.Since(start), 5*time.Second)

	var allFailed *AllFailedError
	require.True(t, errors.As(err, &allFailed))
	assert.True(t, allFailed.BudgetExhausted)
	assert.Equal(t, PatternBudgetExhausted, allFailed.Pattern())
	require.Len(t, allFailed.Attempts, 1)
	assert.Equal(t, trial.KindTimeout, allFailed.Attempts[0].Outcome.Kind)
	require.Len(t, allFailed.NotAttempted, 3)
	assert.Equal(t, "t2", allFailed.NotAttempted[0].Name)
	assert.Contains(t, allFailed.Report(), "Not attempted: t2, t3, t4")
	assert.Equal(t, 0, exec.countFor("t2"))
}

func TestResolveCallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &mockExecutor{}
	_, err := New(exec, Options{}).Resolve(ctx, bern(), fourTrials(), testCred)

	var allFailed *AllFailedError
	require.True(t, errors.As(err, &allFailed))
	assert.True(t, allFailed.BudgetExhausted)
	assert.Empty(t, allFailed.Attempts)
	assert.Len(t, allFailed.NotAttempted, 4)
	assert.Empty(t, exec.calls)
}

func TestResolveBuildsFreshRequestPerTrial(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 12, 20, 13, 30, 0, 0, time.UTC)
	tick := 0
	exec := &mockExecutor{executeFn: func(ctx context.Context, t trial.Trial, body string) trial.Outcome {
		return trial.Outcome{Kind: trial.KindAuthRejected, StatusCode: 403}
	}}

	r := New(exec, Options{
		RequestorRef: "Panel-1",
		Now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	})
	trials := fourTrials()
	trials[2].Dialect = ojp.DialectV2Native

	_, err := r.Resolve(context.Background(), models.NewStopQuery("Zürich & Co", 5, "fr"), trials, testCred)
	require.Error(t, err)
	require.Len(t, exec.calls, 4)

	ids := map[string]bool{}
	for i, c := range exec.calls {
		assert.Contains(t, c.body, fmt.Sprintf("2024-12-20T13:30:%02dZ", i+1))
		assert.Contains(t, c.body, "Zürich &amp; Co")
		assert.Contains(t, c.body, "Panel-1")
		assert.Contains(t, c.body, ">5<")

		if strings.Contains(c.body, "MessageIdentifier") {
			start := strings.Index(c.body, "MessageIdentifier>") + len("MessageIdentifier>")
			end := strings.Index(c.body[start:], "<")
			ids[c.body[start:start+end]] = true
		}
	}
	assert.Len(t, ids, 2, "each v2 request carries its own message identifier")

	assert.Contains(t, exec.calls[0].body, `version="2.0"`)
	assert.Contains(t, exec.calls[1].body, `version="1.0"`)
}

func TestResolvePreconditions(t *testing.T) {
	t.Parallel()

	exec := &mockExecutor{}
	r := New(exec, Options{})

	_, err := r.Resolve(context.Background(), bern(), fourTrials(), credential.Credential{})
	assert.ErrorIs(t, err, credential.ErrMissing)

	_, err = r.Resolve(context.Background(), models.NewStopQuery("  ", 10, "de"), fourTrials(), testCred)
	require.Error(t, err)
	var allFailed *AllFailedError
	assert.False(t, errors.As(err, &allFailed))

	_, err = r.Resolve(context.Background(), bern(), nil, testCred)
	assert.ErrorIs(t, err, ErrNoTrials)

	assert.Empty(t, exec.calls)
}

func TestResolveUnknownDialectIsRecorded(t *testing.T) {
	t.Parallel()

	exec := &mockExecutor{}
	trials := []trial.Trial{{Name: "broken", EndpointURL: "https://a", Dialect: ojp.Dialect(42), Auth: trial.AuthBearer}}

	_, err := New(exec, Options{}).Resolve(context.Background(), bern(), trials, testCred)

	var allFailed *AllFailedError
	require.True(t, errors.As(err, &allFailed))
	require.Len(t, allFailed.Attempts, 1)
	assert.Equal(t, trial.KindBadRequest, allFailed.Attempts[0].Outcome.Kind)
	assert.Empty(t, exec.calls)
}

func TestResolvePacing(t *testing.T) {
	t.Parallel()

	exec := &mockExecutor{executeFn: func(ctx context.Context, t trial.Trial, body string) trial.Outcome {
		return trial.Outcome{Kind: trial.KindNotFound, StatusCode: 404}
	}}

	start := time.Now()
	_, err := New(exec, Options{MinInterval: 40 * time.Millisecond}).Resolve(context.Background(), bern(), fourTrials()[:3], testCred)
	require.Error(t, err)

	assert.Len(t, exec.calls, 3)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestDefaultTrials(t *testing.T) {
	t.Parallel()

	trials := DefaultTrials()
	require.Len(t, trials, 4)

	assert.Equal(t, "ojp20-v2-bearer", trials[0].Name)
	assert.Equal(t, OJP20Endpoint, trials[0].EndpointURL)
	assert.Equal(t, ojp.DialectV2Native, trials[0].Dialect)
	assert.Equal(t, trial.AuthBearer, trials[0].Auth)

	for _, tr := range trials[1:] {
		assert.Equal(t, OJP2020Endpoint, tr.EndpointURL)
		assert.Equal(t, ojp.DialectV1Mixed, tr.Dialect)
	}
	assert.Equal(t, []trial.AuthStrategy{trial.AuthBearer, trial.AuthNone, trial.AuthToken},
		[]trial.AuthStrategy{trials[1].Auth, trials[2].Auth, trials[3].Auth})
}

const bernV2Body = `<?xml version="1.0" encoding="UTF-8"?>
<OJP xmlns="http://www.vdv.de/ojp" xmlns:siri="http://www.siri.org.uk/siri" version="2.0">
  <OJPResponse>
    <siri:ServiceDelivery>
      <OJPLocationInformationDelivery>
        <PlaceResult>
          <Place>
            <StopPlace>
              <StopPlaceRef>8507000</StopPlaceRef>
              <StopPlaceName><Text xml:lang="de">Bern</Text></StopPlaceName>
              <TopographicPlaceName><Text xml:lang="de">Bern</Text></TopographicPlaceName>
            </StopPlace>
          </Place>
        </PlaceResult>
      </OJPLocationInformationDelivery>
    </siri:ServiceDelivery>
  </OJPResponse>
</OJP>`

func serverTrials(base string) []trial.Trial {
	trials := DefaultTrials()
	for i := range trials {
		trials[i].EndpointURL = strings.Replace(trials[i].EndpointURL, "https://api.opentransportdata.swiss", base, 1)
	}
	return trials
}

func TestResolveBernEndToEnd(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		requests []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, r.URL.Path)
		mu.Unlock()

		assert.Equal(t, "Bearer "+testCred.Value(), r.Header.Get("Authorization"))
		assert.Contains(t, string(body), "<Name>Bern</Name>")
		if r.URL.Path != "/ojp20" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(bernV2Body))
	}))
	defer server.Close()

	exec := trial.NewExecutor(client.New(client.Options{Timeout: 5 * time.Second}), "")
	result, err := New(exec, Options{}).Resolve(context.Background(), bern(), serverTrials(server.URL), testCred)
	require.NoError(t, err)

	assert.Equal(t, "ojp20-v2-bearer", result.Trial.Name)
	assert.Equal(t, []models.StopMatch{{DisplayName: "Bern (Bern)", StopReference: "8507000"}}, result.Matches)
	assert.Equal(t, []string{"/ojp20"}, requests)
}

func TestResolveAllForbiddenEndToEnd(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		count int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Forbidden"))
	}))
	defer server.Close()

	exec := trial.NewExecutor(client.New(client.Options{Timeout: 5 * time.Second}), "")
	result, err := New(exec, Options{}).Resolve(context.Background(), bern(), serverTrials(server.URL), testCred)
	assert.Nil(t, result)

	var allFailed *AllFailedError
	require.True(t, errors.As(err, &allFailed))
	assert.Equal(t, PatternCredential, allFailed.Pattern())
	require.Len(t, allFailed.Attempts, 4)
	for _, a := range allFailed.Attempts {
		assert.Equal(t, trial.KindAuthRejected, a.Outcome.Kind)
		assert.Equal(t, http.StatusForbidden, a.Outcome.StatusCode)
	}
	assert.Equal(t, 4, count)
	assert.Contains(t, allFailed.Report(), "token hash")
}

func TestResolveNonXMLSuccessBodiesEndToEnd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Quota exceeded<br/>"))
	}))
	defer server.Close()

	exec := trial.NewExecutor(client.New(client.Options{Timeout: 5 * time.Second}), "")
	result, err := New(exec, Options{}).Resolve(context.Background(), bern(), serverTrials(server.URL), testCred)
	assert.Nil(t, result)

	var allFailed *AllFailedError
	require.True(t, errors.As(err, &allFailed))
	assert.Equal(t, PatternNetwork, allFailed.Pattern())
	require.Len(t, allFailed.Attempts, 4)
	for _, a := range allFailed.Attempts {
		assert.Equal(t, trial.KindTransientError, a.Outcome.Kind)
		assert.True(t, a.Outcome.ParseFailure)
	}
	assert.NotContains(t, allFailed.Report(), "spelling")
}
