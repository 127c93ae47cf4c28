package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack trace.
// Defer it at the top of long-lived goroutines:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "watch loop")
//	    // ...
//	}()
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		if logger == nil {
			logger = NopLogger()
		}
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// MustRecover converts a recovered panic value into an error, or returns nil
// when r is nil. Worker goroutines use it to surface panics through errgroup:
//
//	eg.Go(func() (err error) {
//	    defer func() {
//	        if rerr := observability.MustRecover(recover()); rerr != nil {
//	            err = rerr
//	        }
//	    }()
//	    // ...
//	})
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
