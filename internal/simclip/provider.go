package simclip

import (
	"context"
	"sync"

	"github.com/offsidezero/varcore/internal/adapters/provider"
	"github.com/offsidezero/varcore/internal/domain/model"
)

// ScriptedProvider serves a scenario's pre-computed observations in place
// of the real vision sidecar. It implements provider.Provider.
type ScriptedProvider struct {
	mu           sync.Mutex
	observations map[int64]model.FrameObservation
	failBatch    int
	failWith     error
	calls        int
	lastRate     float64
}

// NewScriptedProvider builds a provider that answers from the scenario's
// observation script and injects the scenario's scripted failure, if any.
func NewScriptedProvider(s *Scenario) *ScriptedProvider {
	failWith := s.FailWith
	if failWith == nil {
		failWith = provider.ErrProviderMalformed
	}
	return &ScriptedProvider{
		observations: s.Observations,
		failBatch:    s.FailBatch,
		failWith:     failWith,
	}
}

// Observe returns the scripted observations for the batch's frames. The
// n-th call fails with the scripted error when the scenario asks for it.
func (p *ScriptedProvider) Observe(ctx context.Context, batch provider.FrameBatch) ([]model.FrameObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	call := p.calls
	p.calls++
	p.lastRate = batch.FrameRate
	p.mu.Unlock()

	if p.failBatch >= 0 && call == p.failBatch {
		return nil, p.failWith
	}

	out := make([]model.FrameObservation, 0, len(batch.Frames))
	for _, f := range batch.Frames {
		if obs, ok := p.observations[f.Index]; ok {
			out = append(out, obs)
		}
	}
	return out, nil
}

// Calls reports how many batches the provider has served so far.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastFrameRate reports the frame rate carried by the most recent batch.
func (p *ScriptedProvider) LastFrameRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRate
}
