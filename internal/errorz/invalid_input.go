package errorz

import "strings"

// InvalidInput signals that a provided input is invalid due to the wrapped errors.
// Inputs that fail this way have caused no side effects and can be corrected
// and resubmitted by the user.
type InvalidInput []error

func (e InvalidInput) Error() string {
	var b strings.Builder
	b.WriteString("invalid input:\n")
	for _, err := range e {
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

func (e InvalidInput) Unwrap() []error {
	return e
}
