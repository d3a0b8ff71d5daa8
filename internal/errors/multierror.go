package errors

import "strings"

// MultiError collects errors across a sequence of independent operations,
// e.g. every log in a batch run.
type MultiError struct {
	msg    string
	Errors []error
}

func NewMultiError(msg string) *MultiError {
	return &MultiError{msg: msg}
}

func (m *MultiError) Append(err error) {
	if err == nil {
		return
	}
	if other, ok := err.(*MultiError); ok {
		m.Errors = append(m.Errors, other.Errors...)
		return
	}
	m.Errors = append(m.Errors, err)
}

func (m *MultiError) Error() string {
	var sb strings.Builder
	sb.WriteString(m.msg + ":")
	for _, err := range m.Errors {
		sb.WriteString("\n " + err.Error())
	}
	return sb.String()
}

// ToErr returns nil when no error has been appended, so the collector can
// be returned directly from functions with an error result.
func (m *MultiError) ToErr() error {
	if m == nil || len(m.Errors) == 0 {
		return nil
	}
	return m
}
