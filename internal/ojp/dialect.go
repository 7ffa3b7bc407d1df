package ojp

import (
	"fmt"
	"strings"
)

const (
	NamespaceSIRI = "http://www.siri.org.uk/siri"
	NamespaceOJP  = "http://www.vdv.de/ojp"
	NamespaceXSI  = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceXSD  = "http://www.w3.org/2001/XMLSchema"
)

// Dialect selects the request layout and the response shape expected back.
type Dialect int

const (
	// DialectV1Mixed is OJP 1.0: SIRI default namespace with OJP elements
	// under the "ojp" alias.
	DialectV1Mixed Dialect = iota + 1
	// DialectV2Native is OJP 2.0: OJP default namespace with the SIRI
	// service envelope under the "siri" alias.
	DialectV2Native
)

func (d Dialect) String() string {
	switch d {
	case DialectV1Mixed:
		return "v1"
	case DialectV2Native:
		return "v2"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

func (d Dialect) Valid() bool {
	return d == DialectV1Mixed || d == DialectV2Native
}

// Version is the value of the root version attribute.
func (d Dialect) Version() string {
	if d == DialectV2Native {
		return "2.0"
	}
	return "1.0"
}

// resultQuery is the path locating one result node in a normalized response.
func (d Dialect) resultQuery() string {
	if d == DialectV2Native {
		return placeResultQuery
	}
	return locationQuery
}

// fallbackQuery is tried when the dialect's own shape yields no nodes;
// servers do not always answer in the shape of the request.
func (d Dialect) fallbackQuery() string {
	if d == DialectV2Native {
		return locationQuery
	}
	return placeResultQuery
}

// ParseDialect accepts "v1", "v2", "1.0", "2.0", "ojp1" and "ojp2".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1", "1.0", "ojp1", "v1_mixed":
		return DialectV1Mixed, nil
	case "v2", "2", "2.0", "ojp2", "v2_native":
		return DialectV2Native, nil
	default:
		return 0, fmt.Errorf("unknown dialect %q", s)
	}
}
