package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"
)

// Classify maps an error chain to a low-cardinality class name for
// metric tags and log fields.
//
// Cancellation and deadline sentinels get explicit names because the
// batch runner and scheduler surface them on every shutdown, and net
// timeouts are the dominant dispatch failure. Everything else is named
// after the innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}

	var netErr net.Error
	if goerrors.As(err, &netErr) && netErr.Timeout() {
		return "net_timeout"
	}

	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	// Bare errors.New sentinels all share one type; a distinct class per
	// message would be unbounded anyway.
	if name == "" || name == "errors_errorstring" {
		return "generic"
	}
	return name
}
