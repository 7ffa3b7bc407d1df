package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

const (
	DefaultLanguage   = "de"
	DefaultMaxResults = 10
)

var validate = validator.New()

// StopQuery is one lookup request. It is built once and passed by value.
type StopQuery struct {
	StopName   string `json:"stopName" validate:"required"`
	MaxResults int    `json:"maxResults" validate:"gte=1,lte=100"`
	Language   string `json:"language" validate:"required"`
}

// NewStopQuery fills in the defaults for a zero limit or empty language.
func NewStopQuery(stopName string, maxResults int, lang string) StopQuery {
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return StopQuery{
		StopName:   strings.TrimSpace(stopName),
		MaxResults: maxResults,
		Language:   lang,
	}
}

func (q StopQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid stop query: %w", err)
	}
	if _, err := language.Parse(q.Language); err != nil {
		return fmt.Errorf("invalid language tag %q: %w", q.Language, err)
	}
	return nil
}

// StopMatch is one stop returned by the lookup service.
type StopMatch struct {
	DisplayName   string `json:"displayName"`
	StopReference string `json:"stopReference"`
}

// NewStopMatch joins the stop name with its topographic context, if any.
func NewStopMatch(name, topo, ref string) StopMatch {
	display := name
	if topo != "" {
		display = fmt.Sprintf("%s (%s)", name, topo)
	}
	return StopMatch{
		DisplayName:   display,
		StopReference: ref,
	}
}

func (m StopMatch) Validate() error {
	if strings.TrimSpace(m.StopReference) == "" {
		return fmt.Errorf("stop match %q has no stop reference", m.DisplayName)
	}
	return nil
}
