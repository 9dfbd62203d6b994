package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestProofPublicID(t *testing.T) {
	a := ProofPublicID(42)
	b := ProofPublicID(42)

	if !strings.HasPrefix(a, "reserva-42-") {
		t.Errorf("ProofPublicID() = %q, want prefix reserva-42-", a)
	}
	if a == b {
		t.Error("ProofPublicID() should be unique per call")
	}
}

func TestDisabledUploader(t *testing.T) {
	var up ProofUploader = DisabledUploader{}
	if _, err := up.UploadProof(context.Background(), strings.NewReader("img"), 1); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("UploadProof() error = %v, want ErrStorageDisabled", err)
	}
}
