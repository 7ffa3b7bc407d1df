package ojp

import "fmt"

// ParseError reports a response body that is not well-formed XML, either as
// received or after namespace normalization.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("OJP parse error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("OJP parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func NewParseError(message string, err error) *ParseError {
	return &ParseError{
		Message: message,
		Err:     err,
	}
}
