package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ExceptionKey is the attribute key that carries an error to be rendered
// as the record's "exception" field.
const ExceptionKey = "exception"

// Exc returns an attribute that attaches err as the record's exception.
func Exc(err error) slog.Attr {
	return slog.Any(ExceptionKey, err)
}

// summarizeError is what production-like environments get: the error's Go
// type and message, nothing that could leak call-site state.
func summarizeError(err error) string {
	return fmt.Sprintf("%T: %s", err, errorMessage(err))
}

// errorMessage is err.Error() through fmt, which turns a panicking Error
// method (a typed-nil pointer, usually) into text instead of a panic.
func errorMessage(err error) string {
	return fmt.Sprint(err)
}

// describeError renders the full diagnostic form used in development: the
// summary, every wrapped cause, the %+v detail when a type provides one, and
// the stack of the goroutine that logged it.
func describeError(err error, stack []byte) string {
	var b strings.Builder
	b.WriteString(summarizeError(err))

	if detail := fmt.Sprintf("%+v", err); detail != errorMessage(err) {
		b.WriteString("\n")
		b.WriteString(detail)
	}

	writeCauses(&b, err, 1)

	if len(stack) > 0 {
		b.WriteString("\n\n")
		b.Write(stack)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeCauses(b *strings.Builder, err error, depth int) {
	const maxDepth = 32
	if depth > maxDepth {
		return
	}

	for _, cause := range unwrapAll(err) {
		if cause == nil {
			continue
		}
		fmt.Fprintf(b, "\n%scaused by %s", strings.Repeat("  ", depth-1), summarizeError(cause))
		writeCauses(b, cause, depth+1)
	}
}

// unwrapAll returns the direct causes of err. An Unwrap method that panics
// ends the chain.
func unwrapAll(err error) (causes []error) {
	defer func() {
		if recover() != nil {
			causes = nil
		}
	}()

	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		return e.Unwrap()
	default:
		if cause := errors.Unwrap(err); cause != nil {
			return []error{cause}
		}
	}
	return nil
}
