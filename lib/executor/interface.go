package executor

import (
	"context"
	"errors"
)

// --------------------------------------------------------------------------
// Callback
// --------------------------------------------------------------------------

// Callback knows how to run one unit against one connection and produce a typed result.
//
// Implementations are statement type specific and supplied by the caller. The engine
// calls Execute from worker goroutines, but never concurrently for the same connection.
type Callback[C, T any] interface {
	Execute(ctx context.Context, unit ExecutionUnit, conn C) (T, error)
}

// CallbackFunc is an adapter to use ordinary functions as Callback
type CallbackFunc[C, T any] func(ctx context.Context, unit ExecutionUnit, conn C) (T, error)

// Execute calls f(ctx, unit, conn)
func (f CallbackFunc[C, T]) Execute(ctx context.Context, unit ExecutionUnit, conn C) (T, error) {
	return f(ctx, unit, conn)
}

// --------------------------------------------------------------------------
// Exception Classifier
// --------------------------------------------------------------------------

// Classification is the decision of an ExceptionClassifier about a unit error
type Classification uint8

const (
	Fatal     Classification = iota // stop dispatching, propagate the error
	Ignorable                       // log, contribute no result, continue
)

func (c Classification) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case Ignorable:
		return "ignorable"
	default:
		return "unknown"
	}
}

// ExceptionClassifier decides whether an error raised by a unit is tolerable
type ExceptionClassifier interface {
	Classify(err error) Classification
}

// ClassifierFunc is an adapter to use ordinary functions as ExceptionClassifier
type ClassifierFunc func(err error) Classification

// Classify calls f(err)
func (f ClassifierFunc) Classify(err error) Classification {
	return f(err)
}

// DefaultClassifier treats every error as fatal
var DefaultClassifier ExceptionClassifier = ClassifierFunc(func(error) Classification { return Fatal })

// IgnoreErrors returns a classifier that treats errors matching one of the targets
// (errors.Is) as ignorable and everything else as fatal.
func IgnoreErrors(targets ...error) ExceptionClassifier {
	return ClassifierFunc(func(err error) Classification {
		for _, target := range targets {
			if errors.Is(err, target) {
				return Ignorable
			}
		}
		return Fatal
	})
}

// IgnoreWhen returns a classifier that treats errors for which ignore returns true as ignorable
func IgnoreWhen(ignore func(err error) bool) ExceptionClassifier {
	return ClassifierFunc(func(err error) Classification {
		if ignore(err) {
			return Ignorable
		}
		return Fatal
	})
}
