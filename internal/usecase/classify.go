package usecase

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"websearch/internal/domain"
)

// Classify maps an arbitrary provider failure onto the closed ErrorKind
// taxonomy. HTTP error responses classify by status code; anything that
// looks like a network-level failure is Transport; everything else,
// including parse errors and cancellation, is Unknown and never retried.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.KindUnknown
	}

	var se *domain.StatusError
	if errors.As(err, &se) {
		return se.Kind()
	}

	if errors.Is(err, context.Canceled) {
		return domain.KindUnknown
	}

	// context.DeadlineExceeded also satisfies net.Error.
	var ne net.Error
	if errors.As(err, &ne) {
		return domain.KindTransport
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return domain.KindTransport
	}

	return classifyByMessage(err)
}

// classifyByMessage is the fallback for errors that arrive stringified,
// typically wrapped by layers that drop the original type.
func classifyByMessage(err error) domain.ErrorKind {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"no such host",
		"broken pipe",
	} {
		if strings.Contains(msg, needle) {
			return domain.KindTransport
		}
	}
	return domain.KindUnknown
}
