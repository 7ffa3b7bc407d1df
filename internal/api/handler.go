package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

func (r APIResponse) GetResponseType() string {
	return r.ResponseType
}

type StopsResponse struct {
	APIResponse
	Stops []models.StopMatch `json:"stops"`
	Trial string             `json:"trial,omitempty"`
}

type ErrorResponse struct {
	APIResponse
	Error   string `json:"error"`
	Pattern string `json:"pattern,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func NewStopsResponse(stops []models.StopMatch, trialName string) *StopsResponse {
	if stops == nil {
		stops = []models.StopMatch{}
	}
	return &StopsResponse{
		APIResponse: APIResponse{ResponseType: "stops"},
		Stops:       stops,
		Trial:       trialName,
	}
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

// Response helpers
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	return JSON(body, http.StatusOK)
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	return JSON(NewErrorResponse(message), statusCode)
}

// JSON writes body with the given status and the shared headers.
func JSON(body interface{}, statusCode int) (events.APIGatewayProxyResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Error("Internal Server Error", http.StatusInternalServerError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(jsonBody),
	}, nil
}

// Parameter parsing helpers
func ParseStopQuery(params map[string]string, defaultLanguage string, defaultLimit int) (models.StopQuery, error) {
	name := strings.TrimSpace(params["name"])
	if name == "" {
		return models.StopQuery{}, InvalidQueryError{Reason: "missing stop name"}
	}

	limit := defaultLimit
	if limitStr, ok := params["limit"]; ok && limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return models.StopQuery{}, InvalidQueryError{Reason: "limit must be a number"}
		}
		limit = parsed
	}

	lang := defaultLanguage
	if l, ok := params["lang"]; ok && l != "" {
		lang = l
	}

	q := models.NewStopQuery(name, limit, lang)
	if err := q.Validate(); err != nil {
		return models.StopQuery{}, InvalidQueryError{Reason: err.Error()}
	}
	return q, nil
}

type InvalidQueryError struct {
	Reason string
}

func (e InvalidQueryError) Error() string {
	return "Invalid query: " + e.Reason
}
