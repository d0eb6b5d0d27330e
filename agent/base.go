package agent

import (
	"fmt"
	"sync"
)

// BaseAgent bundles identity helpers shared by concrete agents. Embed it and
// supply a Run method to satisfy core.Agent. All exported methods are
// goroutine-safe.
type BaseAgent struct {
	mu          sync.RWMutex
	name        string
	description string
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a short description of the agent's purpose. Swarm
// members use it to advertise themselves to each other.
func (b *BaseAgent) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}
