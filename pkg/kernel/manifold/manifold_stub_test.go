//go:build !manifold

package manifold

import (
	"errors"
	"testing"
)

func TestNewReturnsError(t *testing.T) {
	k, err := New(0)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("New() error = %v, want ErrUnavailable", err)
	}
	if k != nil {
		t.Fatal("New() returned a kernel without the manifold tag")
	}
	if Available {
		t.Error("Available = true in a stub build")
	}
}
