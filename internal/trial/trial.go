package trial

import (
	"fmt"
	"strings"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/ojp"
)

// AuthStrategy decides how the credential is placed in the Authorization
// header.
type AuthStrategy int

const (
	AuthBearer AuthStrategy = iota + 1
	AuthToken
	AuthNone
)

// Prefix is prepended to the credential; AuthNone sends it raw.
func (a AuthStrategy) Prefix() string {
	switch a {
	case AuthBearer:
		return "Bearer "
	case AuthToken:
		return "Token "
	default:
		return ""
	}
}

func (a AuthStrategy) String() string {
	switch a {
	case AuthBearer:
		return "bearer"
	case AuthToken:
		return "token"
	case AuthNone:
		return "none"
	default:
		return fmt.Sprintf("auth(%d)", int(a))
	}
}

func (a AuthStrategy) Valid() bool {
	return a == AuthBearer || a == AuthToken || a == AuthNone
}

func ParseAuthStrategy(s string) (AuthStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bearer":
		return AuthBearer, nil
	case "token":
		return AuthToken, nil
	case "none", "raw":
		return AuthNone, nil
	default:
		return 0, fmt.Errorf("unknown auth strategy %q", s)
	}
}

// Trial is one (endpoint, dialect, auth) combination to attempt.
type Trial struct {
	Name        string
	EndpointURL string
	Dialect     ojp.Dialect
	Auth        AuthStrategy
}

func (t Trial) String() string {
	return fmt.Sprintf("%s (%s, %s) %s", t.Name, t.Dialect, t.Auth, t.EndpointURL)
}
