package transport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")
	if err := WriteFrame(&buf, KindCall, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	kind, got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindCall {
		t.Fatalf("expected kind %d, got %d", KindCall, kind)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q, want %q", got, payload)
	}
}

func TestWriteReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, KindClose, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	kind, got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindClose {
		t.Fatalf("expected KindClose, got %d", kind)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %q", got)
	}
}

func TestReadFrameShortHeaderIsError(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 1})
	if _, _, err := ReadFrame(buf); err == nil {
		t.Fatal("expected an error reading a truncated header")
	}
}

func TestReadFrameTruncatedPayloadIsError(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, KindResult, []byte("0123456789"))
	truncated := bytes.NewReader(buf.Bytes()[:HeaderSize+3])
	if _, _, err := ReadFrame(truncated); !errors.Is(err, io.ErrUnexpectedEOF) && err == nil {
		t.Fatal("expected an error reading a truncated payload")
	}
}

func TestWriteFrameAsyncSmallPayloadIsSynchronous(t *testing.T) {
	var buf bytes.Buffer
	done := WriteFrameAsync(&buf, KindCall, []byte("small"))
	if buf.Len() == 0 {
		t.Fatal("expected the small payload to already be written")
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrameAsync: %v", err)
	}
}

func TestWriteFrameAsyncLargePayloadRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	large := bytes.Repeat([]byte("x"), largePayloadThreshold+1024)
	done := WriteFrameAsync(&buf, KindResult, large)
	if err := <-done; err != nil {
		t.Fatalf("WriteFrameAsync: %v", err)
	}
	_, got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Fatal("large payload did not round-trip intact")
	}
}

func TestIsBenignCloseError(t *testing.T) {
	cases := []struct {
		err    error
		benign bool
	}{
		{nil, true},
		{io.EOF, true},
		{io.ErrClosedPipe, true},
		{errors.New("mach error: 44e"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("permission denied"), false},
	}
	for _, c := range cases {
		if got := IsBenignCloseError(c.err); got != c.benign {
			t.Errorf("IsBenignCloseError(%v) = %v, want %v", c.err, got, c.benign)
		}
	}
}

func TestBenignCloseSubstringsAreLowercaseMatched(t *testing.T) {
	err := errors.New(strings.ToUpper("Mach Error: weird"))
	if !IsBenignCloseError(err) {
		t.Fatal("expected case-insensitive matching against benignCloseSubstrings")
	}
}
