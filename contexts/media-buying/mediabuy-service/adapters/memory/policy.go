package memory

import (
	"context"
	"sync"

	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

// StaticPolicyProvider resolves per-tenant approval modes from a fixed map;
// unknown tenants fall back to the default mode.
type StaticPolicyProvider struct {
	mu      sync.RWMutex
	modes   map[string]ports.ApprovalMode
	Default ports.ApprovalMode
}

func NewStaticPolicyProvider(defaultMode ports.ApprovalMode) *StaticPolicyProvider {
	if defaultMode == "" {
		defaultMode = ports.ApprovalModeManual
	}
	return &StaticPolicyProvider{
		modes:   make(map[string]ports.ApprovalMode),
		Default: defaultMode,
	}
}

func (p *StaticPolicyProvider) SetMode(tenantID string, mode ports.ApprovalMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modes[tenantID] = mode
}

func (p *StaticPolicyProvider) ApprovalMode(_ context.Context, tenantID string) (ports.ApprovalMode, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if mode, exists := p.modes[tenantID]; exists {
		return mode, nil
	}
	return p.Default, nil
}
