package procspawn

import (
	"errors"
	"fmt"
)

// dispatchCall resolves and invokes the function named by env.Token,
// trapping panics at this single boundary so neither a user panic nor a
// resolution failure ever terminates the worker process abnormally
// (spec.md §4.3 "Panic handling hook", §4.6).
func dispatchCall(env CallEnvelope) (result ResultEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			result = capturePanic(r, env.CaptureBacktraces, env.BacktraceResolution)
		}
	}()

	entry, err := lookupInvoker(env.Token)
	if err != nil {
		if errors.Is(err, ErrLibraryMissing) {
			return ResultEnvelope{Kind: outcomeLibraryMissing, ErrorDescription: err.Error()}
		}
		return ResultEnvelope{Kind: outcomeDecodeError, ErrorDescription: err.Error()}
	}

	resultBytes, resultIsJSON, err := entry.invoke(env.ArgumentBytes, env.ArgumentIsJSON)
	if err != nil {
		var decErr *DecodeError
		var encErr *EncodeError
		switch {
		case errors.As(err, &decErr):
			return ResultEnvelope{Kind: outcomeDecodeError, ErrorDescription: decErr.Description}
		case errors.As(err, &encErr):
			return ResultEnvelope{Kind: outcomeEncodeError, ErrorDescription: encErr.Description}
		default:
			return ResultEnvelope{Kind: outcomeDecodeError, ErrorDescription: err.Error()}
		}
	}

	return ResultEnvelope{
		Kind:              outcomeOK,
		ResultBytes:       resultBytes,
		ResultFingerprint: entry.resultFingerprint,
		ResultIsJSON:      resultIsJSON,
	}
}

// resultToError converts a non-OK ResultEnvelope into the error that Join
// should surface, per the propagation table in spec.md §4.5/§7. Callers
// are expected to already have handled the outcomeOK case themselves,
// since that path also needs the type-parameterized decode.
func resultToError(env ResultEnvelope) error {
	switch env.Kind {
	case outcomePanic:
		return reconstructRemotePanic(env)
	case outcomeDecodeError:
		return &DecodeError{Description: env.ErrorDescription}
	case outcomeEncodeError:
		return &EncodeError{Description: env.ErrorDescription}
	case outcomeLibraryMissing:
		return fmt.Errorf("%w: %s", ErrLibraryMissing, env.ErrorDescription)
	default:
		return errors.New("procspawn: unknown result kind")
	}
}
