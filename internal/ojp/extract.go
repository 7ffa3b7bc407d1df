package ojp

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog/log"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
)

const (
	placeResultQuery = "//PlaceResult"
	locationQuery    = "//Location"

	unknownField = "Unknown"
)

// Extract reads stop matches from a normalized response in document order.
// Entries without a usable stop reference are dropped.
func Extract(normalized string, d Dialect) ([]models.StopMatch, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(normalized); err != nil {
		return nil, NewParseError("reading normalized response", err)
	}
	if doc.Root() == nil {
		return nil, NewParseError("response has no root element", nil)
	}

	query := d.resultQuery()
	nodes := doc.FindElements(query)
	if len(nodes) == 0 {
		query = d.fallbackQuery()
		nodes = doc.FindElements(query)
	}

	matches := make([]models.StopMatch, 0, len(nodes))
	for _, node := range nodes {
		var (
			m  models.StopMatch
			ok bool
		)
		if query == placeResultQuery {
			m, ok = fromPlaceResult(node)
		} else {
			m, ok = fromLocation(node)
		}
		if !ok {
			continue
		}
		if err := m.Validate(); err != nil {
			log.Debug().Err(err).Str("query", query).Msg("Skipping result")
			continue
		}
		matches = append(matches, m)
	}

	log.Debug().
		Str("dialect", d.String()).
		Str("query", query).
		Int("nodes", len(nodes)).
		Int("matches", len(matches)).
		Msg("Extracted stop matches")

	return matches, nil
}

func fromPlaceResult(pr *etree.Element) (models.StopMatch, bool) {
	place := pr.FindElement(".//Place")
	if place == nil {
		return models.StopMatch{}, false
	}
	stopPlace := place.FindElement(".//StopPlace")
	if stopPlace == nil {
		return models.StopMatch{}, false
	}

	ref := childText(stopPlace, "StopPlaceRef")
	name := childText(stopPlace, ".//StopPlaceName/Text")
	if name == "" {
		name = unknownField
	}
	topo := childText(stopPlace, ".//TopographicPlaceName/Text")
	if topo == "" {
		topo = childText(place, "TopographicPlaceName/Text")
	}

	return models.NewStopMatch(name, topo, ref), true
}

func fromLocation(loc *etree.Element) (models.StopMatch, bool) {
	// OJP 1.0 wraps the location in a result element of the same name; the
	// inner node carries the data.
	if loc.SelectElement("Location") != nil {
		return models.StopMatch{}, false
	}

	ref := childText(loc, ".//StopPlaceRef")

	name := ""
	if el := loc.FindElement(".//StopPlaceName"); el != nil {
		name = textOf(el)
		if t := el.SelectElement("Text"); t != nil {
			name = textOf(t)
		}
	}
	if name == "" {
		name = unknownField
	}

	return models.NewStopMatch(name, "", ref), true
}

func childText(e *etree.Element, path string) string {
	child := e.FindElement(path)
	if child == nil {
		return ""
	}
	return textOf(child)
}

func textOf(e *etree.Element) string {
	return strings.TrimSpace(e.Text())
}
