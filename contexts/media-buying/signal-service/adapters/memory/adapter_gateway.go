package memory

import (
	"context"
	"sync"

	"adbroker/contexts/media-buying/signal-service/domain/entities"
	domainerrors "adbroker/contexts/media-buying/signal-service/domain/errors"
	"adbroker/contexts/media-buying/signal-service/ports"
)

// ScriptedGateway replays a fixed sequence of backend answers per signal
// ref, then keeps returning the last one. Used by the in-memory module and
// the reconciler tests.
type ScriptedGateway struct {
	mu      sync.Mutex
	scripts map[string][]ScriptedAnswer
	cursor  map[string]int
}

type ScriptedAnswer struct {
	Result    ports.ActivationStatusResult
	Transient bool
}

func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{
		scripts: make(map[string][]ScriptedAnswer),
		cursor:  make(map[string]int),
	}
}

func (g *ScriptedGateway) Script(signalRef string, answers ...ScriptedAnswer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[signalRef] = answers
	g.cursor[signalRef] = 0
}

func (g *ScriptedGateway) QueryActivationStatus(_ context.Context, activation entities.SignalActivation) (ports.ActivationStatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	answers := g.scripts[activation.SignalRef]
	if len(answers) == 0 {
		return ports.ActivationStatusResult{Status: entities.ActivationStatusPending}, nil
	}
	index := g.cursor[activation.SignalRef]
	if index >= len(answers) {
		index = len(answers) - 1
	} else {
		g.cursor[activation.SignalRef] = index + 1
	}

	answer := answers[index]
	if answer.Transient {
		return ports.ActivationStatusResult{}, domainerrors.ErrAdapterTransient
	}
	return answer.Result, nil
}
