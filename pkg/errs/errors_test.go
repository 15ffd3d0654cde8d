package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"selection", Selection("channels %d-%d", 1, 20), ErrSelection, KindSelection},
		{"lookup", MetadataLookup("no feed"), ErrMetadataLookup, KindMetadataLookup},
		{"shape", ShapeMismatch("bad cube"), ErrShapeMismatch, KindShapeMismatch},
		{"consistency", Consistency("row flagged"), ErrConsistency, KindConsistency},
		{"io", IO(errors.New("disk"), "read-only"), ErrIO, KindIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("iterating: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if KindOf(wrapped) != tt.kind {
				t.Errorf("KindOf = %v, want %v", KindOf(wrapped), tt.kind)
			}
			if errors.Is(wrapped, ErrConsistency) && tt.kind != KindConsistency {
				t.Errorf("unexpected match with ErrConsistency")
			}
		})
	}
}

func TestErrorContext(t *testing.T) {
	err := MetadataLookup("pair has no beam parameters").WithRow(4).WithAntenna(2, 1)
	msg := err.Error()
	for _, want := range []string{"row=4", "antenna=2", "feed=1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q does not contain %q", msg, want)
		}
	}
	if strings.Contains(msg, "channel=") {
		t.Errorf("message %q should not mention a channel", msg)
	}
}

func TestUnwrapCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := IO(cause, "table is not writable")
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if !strings.HasSuffix(err.Error(), "permission denied") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
