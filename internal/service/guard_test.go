package service

import (
	"testing"

	"github.com/hybridmarkets/resolver/internal/domain"
)

func TestGuardBlocksReentry(t *testing.T) {
	g := NewGuard()

	release, err := g.Enter("mkt-1")
	if err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	_, err = g.Enter("mkt-1")
	if code := domain.CodeOf(err); code != domain.CodeReentrantCall {
		t.Fatalf("nested Enter() code = %q, want %q", code, domain.CodeReentrantCall)
	}

	// Other markets are unaffected.
	release2, err := g.Enter("mkt-2")
	if err != nil {
		t.Fatalf("Enter(other market) error = %v", err)
	}
	release2()

	// Releasing reopens the market.
	release()
	release3, err := g.Enter("mkt-1")
	if err != nil {
		t.Fatalf("Enter() after release error = %v", err)
	}
	release3()
}
