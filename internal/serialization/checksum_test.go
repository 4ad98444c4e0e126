package serialization

import (
	"bytes"
	"errors"
	"testing"
)

func TestComputeChecksum(t *testing.T) {
	data := []byte("test data")
	checksum1 := ComputeChecksum(data)
	checksum2 := ComputeChecksum(data)

	if checksum1 != checksum2 {
		t.Error("checksums should match for identical data")
	}

	checksum3 := ComputeChecksum([]byte("different data"))
	if checksum1 == checksum3 {
		t.Error("checksums should differ for different data")
	}

	if len(checksum1) != 32 {
		t.Errorf("expected checksum length 32, got %d", len(checksum1))
	}
}

func TestComputeChecksumReader(t *testing.T) {
	data := []byte("test data for reader")

	checksum, err := ComputeChecksumReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ComputeChecksumReader failed: %v", err)
	}

	if checksum != ComputeChecksum(data) {
		t.Error("reader checksum should match direct checksum")
	}
}

func TestValidateChecksum(t *testing.T) {
	checksum := ComputeChecksum([]byte("test data"))

	if err := ValidateChecksum(checksum, checksum); err != nil {
		t.Errorf("expected no error for matching checksums, got: %v", err)
	}

	var wrong [32]byte
	err := ValidateChecksum(checksum, wrong)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got: %v", err)
	}
}
