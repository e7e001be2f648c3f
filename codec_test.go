package procspawn

import (
	"bytes"
	"errors"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	call := CallEnvelope{
		Token:               FuncToken{Name: "pkg.Fn", Offset: 0x1234, Library: "/bin/self"},
		ArgumentBytes:       []byte("hello"),
		ArgumentFingerprint: "pkg/int",
		ArgumentIsJSON:      false,
		CaptureBacktraces:   true,
		BacktraceResolution: BacktraceRaw,
	}
	if err := sendCall(&buf, call); err != nil {
		t.Fatalf("sendCall: %v", err)
	}
	got, closed, err := recvCall(&buf)
	if err != nil {
		t.Fatalf("recvCall: %v", err)
	}
	if closed {
		t.Fatal("did not expect a close frame")
	}
	if got.Token.Name != call.Token.Name || got.Token.Offset != call.Token.Offset {
		t.Fatalf("token mismatch: got %+v, want %+v", got.Token, call.Token)
	}
	if !bytes.Equal(got.ArgumentBytes, call.ArgumentBytes) {
		t.Fatalf("argument bytes mismatch: got %q, want %q", got.ArgumentBytes, call.ArgumentBytes)
	}
}

func TestCloseFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := sendClose(&buf); err != nil {
		t.Fatalf("sendClose: %v", err)
	}
	_, closed, err := recvCall(&buf)
	if err != nil {
		t.Fatalf("recvCall: %v", err)
	}
	if !closed {
		t.Fatal("expected a close frame")
	}
}

func TestResultEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	result := ResultEnvelope{
		Kind:              outcomeOK,
		ResultBytes:       []byte{1, 2, 3},
		ResultFingerprint: typeFingerprint[int](),
	}
	if err := sendResult(&buf, result); err != nil {
		t.Fatalf("sendResult: %v", err)
	}
	got, err := recvResult(&buf)
	if err != nil {
		t.Fatalf("recvResult: %v", err)
	}
	if got.ResultFingerprint != result.ResultFingerprint {
		t.Fatalf("fingerprint mismatch: got %q, want %q", got.ResultFingerprint, result.ResultFingerprint)
	}
	if !bytes.Equal(got.ResultBytes, result.ResultBytes) {
		t.Fatalf("result bytes mismatch")
	}
}

func TestJSONEscapeHatch(t *testing.T) {
	v := JSON[map[string]any]{Value: map[string]any{"a": 1.0, "b": "two"}}
	data, isJSON, err := encodeValue(v)
	if err != nil {
		t.Fatalf("encodeValue: %v", err)
	}
	if !isJSON {
		t.Fatal("expected the JSON escape hatch to be used")
	}
	got, err := decodeValue[JSON[map[string]any]](data, isJSON)
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if got.Value["b"] != "two" {
		t.Fatalf("expected field b=two, got %v", got.Value)
	}
}

func TestDefaultCodecIsBinary(t *testing.T) {
	_, isJSON, err := encodeValue(42)
	if err != nil {
		t.Fatalf("encodeValue: %v", err)
	}
	if isJSON {
		t.Fatal("expected msgpack by default")
	}
}

func TestTypeFingerprintDistinguishesTypes(t *testing.T) {
	intFp := typeFingerprint[int]()
	strFp := typeFingerprint[string]()
	if intFp == strFp {
		t.Fatalf("expected distinct fingerprints, both were %q", intFp)
	}
	if typeFingerprint[int]() != intFp {
		t.Fatal("expected a stable fingerprint for the same type")
	}
}

type codecBadEncodeArg struct {
	Ch chan int
}

func TestEncodeValueReportsEncodeError(t *testing.T) {
	_, _, err := encodeValue(codecBadEncodeArg{Ch: make(chan int)})
	if err == nil {
		t.Fatal("expected an error encoding a channel field")
	}
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodeError, got %T: %v", err, err)
	}
}
