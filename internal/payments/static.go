package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// StaticProvider serves intents from memory. Dev environments and tests use
// it in place of a real processor client.
type StaticProvider struct {
	mu      sync.RWMutex
	intents map[string]*Intent
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{intents: make(map[string]*Intent)}
}

// Put registers or replaces an intent.
func (p *StaticProvider) Put(intent *Intent) {
	if intent == nil || intent.ID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[intent.ID] = intent
}

// SetStatus registers a bare intent with the given status.
func (p *StaticProvider) SetStatus(intentID string, status enums.PaymentStatus) {
	p.Put(&Intent{ID: intentID, Status: status})
}

func (p *StaticProvider) GetPaymentStatus(_ context.Context, intentID string) (*Intent, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	intent, ok := p.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("payment intent %s not found", intentID)
	}
	return intent, nil
}
