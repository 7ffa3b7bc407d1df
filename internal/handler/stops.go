package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/api"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/credential"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/resolver"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
)

type StopResolver interface {
	Resolve(ctx context.Context, q models.StopQuery, trials []trial.Trial, cred credential.Credential) (*resolver.Result, error)
}

var _ StopResolver = (*resolver.Resolver)(nil)

type StopsHandler struct {
	resolver        StopResolver
	credentials     credential.Source
	trials          []trial.Trial
	defaultLanguage string
	defaultLimit    int
}

func NewStopsHandler(r StopResolver, src credential.Source, trials []trial.Trial, defaultLanguage string, defaultLimit int) *StopsHandler {
	return &StopsHandler{
		resolver:        r,
		credentials:     src,
		trials:          trials,
		defaultLanguage: defaultLanguage,
		defaultLimit:    defaultLimit,
	}
}

func (h *StopsHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	q, err := api.ParseStopQuery(request.QueryStringParameters, h.defaultLanguage, h.defaultLimit)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	cred, err := h.credentials.Get(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrMissing) {
			log.Error().Err(err).Msg("No API key available")
			return api.Error("API key not configured", http.StatusInternalServerError)
		}
		log.Error().Err(err).Msg("Error loading API key")
		return api.Error("Error loading API key", http.StatusInternalServerError)
	}

	result, err := h.resolver.Resolve(ctx, q, h.trials, cred)
	if err != nil {
		var allFailed *resolver.AllFailedError
		if errors.As(err, &allFailed) {
			resp := api.NewErrorResponse(allFailed.Error())
			resp.Pattern = string(allFailed.Pattern())
			resp.Hint = allFailed.Pattern().Hint()
			return api.JSON(resp, http.StatusBadGateway)
		}
		log.Error().Err(err).Str("stop_name", q.StopName).Msg("Error resolving stop")
		return api.Error("Error resolving stop", http.StatusInternalServerError)
	}

	return api.Success(api.NewStopsResponse(result.Matches, result.Trial.Name))
}
