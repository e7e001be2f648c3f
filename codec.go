package procspawn

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/go-procspawn/procspawn/internal/transport"
)

// sendCall frames and sends a CallEnvelope. The envelope struct itself is
// always msgpack-encoded; env.ArgumentIsJSON only describes how
// env.ArgumentBytes (the user value inside it) was encoded, per the
// escape-hatch design in spec.md §4.2.
func sendCall(w io.Writer, env CallEnvelope) error {
	data, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("procspawn: encoding call envelope: %w", err)
	}
	done := transport.WriteFrameAsync(w, transport.KindCall, data)
	return <-done
}

// sendClose sends the graceful worker-shutdown control frame (SPEC_FULL.md
// §4's close-signal handshake), distinguishing "no more work" from a dead
// transport.
func sendClose(w io.Writer) error {
	return transport.WriteFrame(w, transport.KindClose, nil)
}

// recvCall reads the next frame and reports whether it was a close signal.
func recvCall(r io.Reader) (env CallEnvelope, closed bool, err error) {
	kind, payload, err := transport.ReadFrame(r)
	if err != nil {
		return CallEnvelope{}, false, err
	}
	if kind == transport.KindClose {
		return CallEnvelope{}, true, nil
	}
	if err := msgpack.Unmarshal(payload, &env); err != nil {
		return CallEnvelope{}, false, fmt.Errorf("procspawn: decoding call envelope: %w", err)
	}
	return env, false, nil
}

// sendResult frames and sends a ResultEnvelope.
func sendResult(w io.Writer, env ResultEnvelope) error {
	data, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("procspawn: encoding result envelope: %w", err)
	}
	done := transport.WriteFrameAsync(w, transport.KindResult, data)
	return <-done
}

// recvResult reads and decodes the next ResultEnvelope.
func recvResult(r io.Reader) (ResultEnvelope, error) {
	kind, payload, err := transport.ReadFrame(r)
	if err != nil {
		return ResultEnvelope{}, err
	}
	var env ResultEnvelope
	if kind != transport.KindResult {
		return ResultEnvelope{}, fmt.Errorf("procspawn: unexpected frame kind %d waiting for result", kind)
	}
	if err := msgpack.Unmarshal(payload, &env); err != nil {
		return ResultEnvelope{}, fmt.Errorf("procspawn: decoding result envelope: %w", err)
	}
	return env, nil
}

// JSON wraps a value that must be carried through the JSON escape hatch
// instead of the default binary codec — for schemas using field
// flattening or other shapes msgpack cannot round-trip (spec.md §4.2,
// §8 property S6, "Bad serialization"). Construction is the only thing
// the caller needs to do differently; Spawn/Pool detect the wrapper via
// the jsonEscapeHatch interface and switch codecs transparently.
type JSON[T any] struct {
	Value T
}

type jsonEscapeHatch interface{ isJSONEscapeHatch() }

func (JSON[T]) isJSONEscapeHatch() {}

// encodeValue picks msgpack or JSON depending on whether v opts into the
// escape hatch, and returns the bytes plus whether JSON was used.
func encodeValue(v any) (data []byte, isJSON bool, err error) {
	if _, ok := v.(jsonEscapeHatch); ok {
		data, err = json.Marshal(v)
		if err != nil {
			return nil, false, &EncodeError{Description: err.Error()}
		}
		return data, true, nil
	}
	data, err = msgpack.Marshal(v)
	if err != nil {
		return nil, false, &EncodeError{Description: err.Error()}
	}
	return data, false, nil
}

// decodeValue decodes data into a T, using JSON when isJSON is set and
// msgpack otherwise.
func decodeValue[T any](data []byte, isJSON bool) (T, error) {
	var out T
	var err error
	if isJSON {
		err = json.Unmarshal(data, &out)
	} else {
		err = msgpack.Unmarshal(data, &out)
	}
	if err != nil {
		return out, &DecodeError{Description: err.Error()}
	}
	return out, nil
}

// typeFingerprint returns a stable identifier for T, used so a reader can
// reject decoding into the wrong type (spec.md §4.2 "type fingerprinting",
// §8 property 10 "type mismatch detection") instead of attempting an
// unsafe decode. It is derived from the type's full name, which is stable
// within one compiled binary — exactly the scope we need, since parent
// and child are always the same binary image.
func typeFingerprint[T any]() string {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	return fmt.Sprintf("%s/%s", t.PkgPath(), t.String())
}
