// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"fmt"

	"github.com/pdiddy/refcheck/pkg/types"
)

// Pool is an immutable set of completion clients, one per API key. Batch
// items pick a client by their index so load spreads across keys without a
// mutated counter.
type Pool struct {
	clients []Client
}

// NewPool builds one client per configured key. A pool needs at least one
// key; this is checked at startup, not per reference.
func NewPool(cfg types.CompletionConfig) (*Pool, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("no completion API keys configured")
	}
	clients := make([]Client, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		clients = append(clients, NewOpenAI(cfg, key))
	}
	return &Pool{clients: clients}, nil
}

// NewPoolFromClients wraps pre-built clients. Tests use this to inject
// scripted completions.
func NewPoolFromClients(clients ...Client) *Pool {
	return &Pool{clients: clients}
}

// Completer returns the client for a batch-item index. Selection is a pure
// function of position: index modulo pool size.
func (p *Pool) Completer(index int) Client {
	if index < 0 {
		index = -index
	}
	return p.clients[index%len(p.clients)]
}

// Size returns the number of pooled clients.
func (p *Pool) Size() int {
	return len(p.clients)
}
