package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/api"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/credential"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/resolver"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
)

// mockResolver implements StopResolver for testing
type mockResolver struct {
	resolveFn func(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*resolver.Result, error)
	called    bool
}

func (m *mockResolver) Resolve(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*resolver.Result, error) {
	m.called = true
	if m.resolveFn != nil {
		return m.resolveFn(ctx, q, trials, cred)
	}
	return &resolver.Result{}, nil
}

type sourceFunc func(ctx context.Context) (credential.Credential, error)

func (f sourceFunc) Get(ctx context.Context) (credential.Credential, error) {
	return f(ctx)
}

var validKey = credential.Static(credential.New("handler-test-key"))

func TestStopsHandler_HandleRequest(t *testing.T) {
	bern := models.StopMatch{DisplayName: "Bern (Bern)", StopReference: "8507000"}

	tests := []struct {
		name           string
		params         map[string]string
		source         credential.Source
		resolveFn      func(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*resolver.Result, error)
		expectedStatus int
		expectResolve  bool
		checkBody      func(t *testing.T, body string)
	}{
		{
			name:   "stops found",
			params: map[string]string{"name": "Bern", "limit": "5"},
			source: validKey,
			resolveFn: func(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*resolver.Result, error) {
				assert.Equal(t, "Bern", q.StopName)
				assert.Equal(t, 5, q.MaxResults)
				assert.Equal(t, "it", q.Language)
				assert.Equal(t, "handler-test-key", cred.Value())
				assert.Len(t, trials, 4)
				return &resolver.Result{Trial: resolver.DefaultTrials()[0], Matches: []models.StopMatch{bern}}, nil
			},
			expectedStatus: http.StatusOK,
			expectResolve:  true,
			checkBody: func(t *testing.T, body string) {
				var resp api.StopsResponse
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.Equal(t, "stops", resp.ResponseType)
				assert.Equal(t, []models.StopMatch{bern}, resp.Stops)
				assert.Equal(t, "ojp20-v2-bearer", resp.Trial)
			},
		},
		{
			name:           "missing name",
			params:         map[string]string{},
			source:         validKey,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing credential",
			params:         map[string]string{"name": "Bern"},
			source:         credential.Static(credential.Credential{}),
			expectedStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, body string) {
				assert.Contains(t, body, "API key not configured")
			},
		},
		{
			name:   "credential source failure",
			params: map[string]string{"name": "Bern"},
			source: sourceFunc(func(ctx context.Context) (credential.Credential, error) {
				return credential.Credential{}, errors.New("throttled")
			}),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:   "all trials failed",
			params: map[string]string{"name": "Bern"},
			source: validKey,
			resolveFn: func(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*resolver.Result, error) {
				attempts := make([]resolver.Attempt, 0, len(trials))
				for _, tr := range trials {
					attempts = append(attempts, resolver.Attempt{Trial: tr, Outcome: trial.Outcome{Kind: trial.KindAuthRejected, StatusCode: 403}})
				}
				return nil, &resolver.AllFailedError{Query: q, Attempts: attempts}
			},
			expectedStatus: http.StatusBadGateway,
			expectResolve:  true,
			checkBody: func(t *testing.T, body string) {
				var resp api.ErrorResponse
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.Equal(t, "error", resp.ResponseType)
				assert.Equal(t, "credential", resp.Pattern)
				assert.NotEmpty(t, resp.Hint)
				assert.NotContains(t, body, "handler-test-key")
			},
		},
		{
			name:   "unexpected resolver error",
			params: map[string]string{"name": "Bern"},
			source: validKey,
			resolveFn: func(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*resolver.Result, error) {
				return nil, resolver.ErrNoTrials
			},
			expectedStatus: http.StatusInternalServerError,
			expectResolve:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockResolver{resolveFn: tt.resolveFn}
			h := NewStopsHandler(mock, tt.source, resolver.DefaultTrials(), "it", 10)

			resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
				QueryStringParameters: tt.params,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectResolve, mock.called)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
			if tt.checkBody != nil {
				tt.checkBody(t, resp.Body)
			}
		})
	}
}
