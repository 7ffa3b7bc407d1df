package resolver

import (
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/ojp"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
)

const (
	OJP20Endpoint   = "https://api.opentransportdata.swiss/ojp20"
	OJP2020Endpoint = "https://api.opentransportdata.swiss/ojp2020"
)

// DefaultTrials is the candidate list for opentransportdata.swiss, most
// likely combination first.
func DefaultTrials() []trial.Trial {
	return []trial.Trial{
		{Name: "ojp20-v2-bearer", EndpointURL: OJP20Endpoint, Dialect: ojp.DialectV2Native, Auth: trial.AuthBearer},
		{Name: "ojp2020-v1-bearer", EndpointURL: OJP2020Endpoint, Dialect: ojp.DialectV1Mixed, Auth: trial.AuthBearer},
		{Name: "ojp2020-v1-raw", EndpointURL: OJP2020Endpoint, Dialect: ojp.DialectV1Mixed, Auth: trial.AuthNone},
		{Name: "ojp2020-v1-token", EndpointURL: OJP2020Endpoint, Dialect: ojp.DialectV1Mixed, Auth: trial.AuthToken},
	}
}
