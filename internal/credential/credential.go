package credential

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMissing is returned by every Source when no API key is configured.
var ErrMissing = errors.New("OJP API key not configured")

const redacted = "[redacted]"

// Credential holds an API key. Printing, formatting or marshalling it never
// reveals the key; use Value to place it on the wire.
type Credential struct {
	value string
}

// Source yields the credential used for every endpoint trial.
type Source interface {
	Get(ctx context.Context) (Credential, error)
}

func New(value string) Credential {
	return Credential{value: strings.TrimSpace(value)}
}

func (c Credential) Value() string {
	return c.value
}

func (c Credential) IsZero() bool {
	return c.value == ""
}

func (c Credential) Len() int {
	return len(c.value)
}

func (c Credential) String() string {
	return redacted
}

func (c Credential) GoString() string {
	return "credential.Credential{" + redacted + "}"
}

func (c Credential) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Preview shows the first 20 and last 10 characters so an operator can tell
// which key is in use. Short keys are masked completely.
func (c Credential) Preview() string {
	if len(c.value) <= 30 {
		return strings.Repeat("*", len(c.value))
	}
	return c.value[:20] + "..." + c.value[len(c.value)-10:]
}

// Report summarizes a credential for operators.
type Report struct {
	Length  int
	Preview string
	Warning string
}

// Inspect flags keys that look like the portal's token hash rather than the
// token itself. Both are JWT-shaped; the hash descriptor carries an "h" field.
func Inspect(c Credential) Report {
	r := Report{
		Length:  c.Len(),
		Preview: c.Preview(),
	}
	if !strings.HasPrefix(c.value, "eyJ") {
		return r
	}

	header := c.value
	if dot := strings.IndexByte(header, '.'); dot >= 0 {
		header = header[:dot]
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(header, "="))
	if err != nil {
		return r
	}
	if strings.Contains(string(decoded), `"h":`) {
		r.Warning = fmt.Sprintf("key decodes to %s and may be the token hash rather than the token", decoded)
	}
	return r
}

// Chain returns the first credential any of its sources yields.
type Chain []Source

func (c Chain) Get(ctx context.Context) (Credential, error) {
	for _, src := range c {
		cred, err := src.Get(ctx)
		if err == nil && !cred.IsZero() {
			return cred, nil
		}
		if err != nil && !errors.Is(err, ErrMissing) {
			return Credential{}, err
		}
	}
	return Credential{}, ErrMissing
}

// Static is a Source that always yields the same credential.
type Static Credential

func (s Static) Get(context.Context) (Credential, error) {
	if Credential(s).IsZero() {
		return Credential{}, ErrMissing
	}
	return Credential(s), nil
}
