// Package ctxerr provides functions to wrap errors with annotations and
// stack traces, and to hand them to a context-registered error handler.
//
// Typical use is to call New or Wrap[f] as close as possible to where the
// error is encountered, and to call Handle with the error only once, after it
// bubbled back to the top of the call stack (e.g. in the cron loop or the CLI
// command). It is fine to wrap the error with more annotations along the way.
package ctxerr

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rotisserie/eris"
)

type key int

const errHandlerKey key = 0

// Handler is the minimal surface needed to report an error that reached the
// top of a call stack.
type Handler interface {
	Store(ctx context.Context, err error)
}

// NewContext returns a context derived from ctx that contains the provided
// error handler.
func NewContext(ctx context.Context, eh Handler) context.Context {
	return context.WithValue(ctx, errHandlerKey, eh)
}

func fromContext(ctx context.Context) Handler {
	v, _ := ctx.Value(errHandlerKey).(Handler)
	return v
}

// New creates a new error with the provided error message.
func New(ctx context.Context, errMsg string) error {
	return ensureCommonMetadata(ctx, errors.New(errMsg))
}

// Errorf creates a new error with the provided formatted message.
func Errorf(ctx context.Context, format string, args ...interface{}) error {
	return ensureCommonMetadata(ctx, errors.Errorf(format, args...))
}

// Wrap annotates err with the optional message.
func Wrap(ctx context.Context, err error, msgAndArgs ...interface{}) error {
	if err == nil {
		return nil
	}
	err = ensureCommonMetadata(ctx, err)
	msg := fmt.Sprint(msgAndArgs...)
	if msg == "" {
		return err
	}
	// do not wrap with eris.Wrap, we want only the root error closest to the
	// actual error condition to capture the stack trace, others just wrap
	// using pkg/errors.
	return errors.Wrap(err, msg)
}

// Wrapf annotates err with the provided formatted message.
func Wrapf(ctx context.Context, err error, fmsg string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	err = ensureCommonMetadata(ctx, err)
	return errors.Wrapf(err, fmsg, args...)
}

// Cause returns the root error of err's chain.
func Cause(err error) error {
	return errors.Cause(err)
}

// Handle hands err to the error handler registered on the context, if any. It
// returns err unchanged so it can be used in a return statement.
func Handle(ctx context.Context, err error) error {
	if eh := fromContext(ctx); eh != nil && err != nil {
		eh.Store(ctx, err)
	}
	return err
}

func ensureCommonMetadata(ctx context.Context, err error) error {
	var sf interface{ StackFrames() []uintptr }
	if err != nil && !errors.As(err, &sf) {
		// no eris error anywhere in the chain, add the common metadata with
		// the stack trace
		err = eris.Wrapf(err, "timestamp: %s", time.Now().Format(time.RFC3339))
	}
	return err
}
