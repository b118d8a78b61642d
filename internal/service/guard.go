package service

import (
	"fmt"
	"sync"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// Guard marks a market as mid-external-call so that a collaborator invoked
// during fund movement or an oracle fetch cannot re-enter the engine for the
// same market. Enter fails with a reentrant_call error while the market is
// already bracketed.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]bool
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]bool)}
}

// Enter brackets an external call for the market. The caller must invoke the
// returned release function once the call finishes.
func (g *Guard) Enter(marketID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight[marketID] {
		return nil, domain.State(domain.CodeReentrantCall,
			fmt.Sprintf("market %s is already inside an external call", marketID))
	}
	g.inflight[marketID] = true

	return func() {
		g.mu.Lock()
		delete(g.inflight, marketID)
		g.mu.Unlock()
	}, nil
}
