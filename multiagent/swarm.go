package multiagent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/tool"
)

const kindSwarm = "swarm"

// MaxAgentSpecs bounds the number of swarm members.
const MaxAgentSpecs = 10

// AgentSpec declares one swarm member.
type AgentSpec struct {
	Name        string
	Description string
	Agent       core.Agent
	// Tools selects tools from SwarmOptions.Tools by name. Nil selects all
	// of them; names that do not resolve are skipped with a warning.
	Tools []string
}

// SwarmOptions configures a Swarm.
type SwarmOptions struct {
	CommonOptions
	// EntryPoint defaults to the first member.
	EntryPoint    string
	MaxHandoffs   int
	MaxIterations int
	// RepetitiveHandoffWindow enables ping-pong detection: the run fails
	// when the last window activations involve fewer than
	// RepetitiveHandoffMinUnique distinct members.
	RepetitiveHandoffWindow    int
	RepetitiveHandoffMinUnique int
	// Tools is the pool AgentSpec.Tools selects from.
	Tools []tool.Tool
	// MaxModelCalls bounds model calls per activation (0 = unlimited).
	MaxModelCalls int
}

// Swarm passes control between agents through handoffs. The active member
// decides who runs next; the run completes when a member finishes without
// handing off.
type Swarm struct {
	orchestration

	members    map[string]*swarmMember
	order      []string
	entryPoint string

	maxHandoffs     int
	maxIterations   int
	repeatWindow    int
	repeatMinUnique int
}

var _ Orchestrator = (*Swarm)(nil)

type swarmMember struct {
	node        *Node
	description string
}

type swarmProgress struct {
	current    string
	history    []string
	handoffs   int
	iterations int
	usage      core.Usage
	elapsed    time.Duration
	// resuming is set while the current member waits for interrupt responses.
	resuming bool
}

type toolRegistrar interface {
	RegisterTools(tools ...tool.Tool)
}

type handoffConfigurer interface {
	SetHandoffTargets(targets ...tool.HandoffTarget)
}

// NewSwarm creates a swarm from agents, named and described by themselves.
func NewSwarm(agents []core.Agent, optFns ...func(o *SwarmOptions)) (*Swarm, error) {
	specs := make([]AgentSpec, 0, len(agents))
	for _, a := range agents {
		if a == nil {
			return nil, configErrorf(kindSwarm, "agent must not be nil")
		}

		specs = append(specs, AgentSpec{Name: a.Name(), Description: a.Description(), Agent: a, Tools: []string{}})
	}

	return NewSwarmFromSpecs(specs, optFns...)
}

// NewSwarmFromSpecs creates a swarm from member specs. Colliding names are
// suffixed (name, name_1, ...). Members that support it receive their
// selected tools and the handoff tool listing the other members.
func NewSwarmFromSpecs(specs []AgentSpec, optFns ...func(o *SwarmOptions)) (*Swarm, error) {
	opts := SwarmOptions{MaxHandoffs: 20, MaxIterations: 20}
	for _, fn := range optFns {
		fn(&opts)
	}

	switch {
	case len(specs) == 0:
		return nil, configErrorf(kindSwarm, "at least one agent is required")
	case len(specs) > MaxAgentSpecs:
		return nil, configErrorf(kindSwarm, "at most %d agents are supported, got %d", MaxAgentSpecs, len(specs))
	case opts.MaxHandoffs < 0 || opts.MaxIterations < 1:
		return nil, configErrorf(kindSwarm, "max handoffs must not be negative and max iterations must be positive")
	case opts.RepetitiveHandoffWindow > 0 && opts.RepetitiveHandoffMinUnique < 1:
		return nil, configErrorf(kindSwarm, "repetitive handoff detection requires a positive minimum of unique agents")
	}

	pool, err := tool.NewSet(opts.Tools...)
	if err != nil {
		return nil, configErrorf(kindSwarm, "tool pool: %v", err)
	}

	s := &Swarm{
		orchestration:   newOrchestration(kindSwarm, opts.CommonOptions),
		members:         make(map[string]*swarmMember, len(specs)),
		maxHandoffs:     opts.MaxHandoffs,
		maxIterations:   opts.MaxIterations,
		repeatWindow:    opts.RepetitiveHandoffWindow,
		repeatMinUnique: opts.RepetitiveHandoffMinUnique,
	}

	names := dedupeNames(specs)

	for i, spec := range specs {
		if spec.Agent == nil {
			return nil, configErrorf(kindSwarm, "agent %q must not be nil", spec.Name)
		}

		id := names[i]
		if id != spec.Name {
			s.logger.Warn("swarm.agent.renamed", "name", spec.Name, "id", id)
		}

		s.members[id] = &swarmMember{
			node: NewAgentNode(id, spec.Agent, func(o *AgentNodeOptions) {
				o.MaxModelCalls = opts.MaxModelCalls
			}),
			description: spec.Description,
		}
		s.order = append(s.order, id)

		s.attachTools(id, spec, pool)
	}

	for i, spec := range specs {
		hc, ok := spec.Agent.(handoffConfigurer)
		if !ok {
			continue
		}

		targets := make([]tool.HandoffTarget, 0, len(s.order)-1)
		for _, other := range s.order {
			if other != names[i] {
				targets = append(targets, tool.HandoffTarget{Name: other, Description: s.members[other].description})
			}
		}

		hc.SetHandoffTargets(targets...)
	}

	s.entryPoint = opts.EntryPoint
	if s.entryPoint == "" {
		s.entryPoint = s.order[0]
	}

	if _, ok := s.members[s.entryPoint]; !ok {
		return nil, configErrorf(kindSwarm, "entry point %q is not a member", s.entryPoint)
	}

	return s, nil
}

func (s *Swarm) attachTools(id string, spec AgentSpec, pool *tool.Set) {
	if pool.Len() == 0 {
		if len(spec.Tools) > 0 {
			s.logger.Warn("swarm.tool.unknown", "agent", id, "tools", spec.Tools)
		}
		return
	}

	selected, missing := pool.Filter(spec.Tools)
	for _, name := range missing {
		s.logger.Warn("swarm.tool.unknown", "agent", id, "tool", name)
	}

	if len(selected) == 0 {
		return
	}

	reg, ok := spec.Agent.(toolRegistrar)
	if !ok {
		s.logger.Warn("swarm.tool.unsupported", "agent", id, "tools", len(selected))
		return
	}

	reg.RegisterTools(selected...)
}

func dedupeNames(specs []AgentSpec) []string {
	taken := make(map[string]bool, len(specs))
	names := make([]string, len(specs))

	for i, spec := range specs {
		name := spec.Name
		if name == "" {
			name = "agent"
		}

		candidate := name
		for n := 1; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}

		taken[candidate] = true
		names[i] = candidate
	}

	return names
}

// Members returns the member ids in declaration order.
func (s *Swarm) Members() []string { return slices.Clone(s.order) }

// Node returns the node of a member.
func (s *Swarm) Node(id string) (*Node, bool) {
	m, ok := s.members[id]
	if !ok {
		return nil, false
	}
	return m.node, true
}

// EntryPoint returns the id of the first active member.
func (s *Swarm) EntryPoint() string { return s.entryPoint }

// Stream starts a run for task.
func (s *Swarm) Stream(ctx context.Context, task core.Content) (*Run, error) {
	return s.stream(ctx, task, s.run)
}

// Resume answers the pending interrupts of the suspended run and continues it.
func (s *Swarm) Resume(ctx context.Context, responses []interrupt.Response) (*Run, error) {
	return s.resume(ctx, responses, s.run)
}

// Invoke runs task to completion or suspension.
func (s *Swarm) Invoke(ctx context.Context, task core.Content) (Outcome, error) {
	run, err := s.Stream(ctx, task)
	if err != nil {
		return nil, err
	}

	return run.Wait()
}

func (s *Swarm) execute(ctx context.Context, st *State, resumed bool, emit func(Event) error) (*Result, error) {
	return s.invoke(ctx, st, resumed, emit, s.run)
}

type handoffLogger interface {
	LogHandoff(from, to, message string)
}

func (s *Swarm) run(ctx context.Context, st *State, _ bool, emit func(Event) error) (*Result, error) {
	if st.swarm == nil {
		st.swarm = &swarmProgress{current: s.entryPoint}
	}

	prog := st.swarm
	start := time.Now()

	defer func() { prog.elapsed += time.Since(start) }()

	for {
		if err := ctx.Err(); err != nil {
			return s.result(st, start, StatusFailed, err), err
		}

		if !prog.resuming {
			if prog.iterations >= s.maxIterations {
				s.logger.Warn("swarm.limit", "name", s.name, "max_iterations", s.maxIterations)
				return s.result(st, start, StatusFailed, ErrMaxIterations), nil
			}

			prog.iterations++
			prog.history = append(prog.history, prog.current)
		}

		prog.resuming = false

		current := prog.current
		r, err := s.activate(ctx, s.members[current].node, s.buildInput(st, prog), st, emit)
		if err != nil {
			return s.result(st, start, StatusFailed, err), err
		}

		prog.usage = prog.usage.Add(r.Usage)

		if r.Status == StatusInterrupted {
			prog.resuming = true
			return s.result(st, start, StatusInterrupted, nil), &interrupt.Signal{Interrupts: r.Interrupts}
		}

		st.recordResult(r)

		if r.Status == StatusFailed {
			return s.result(st, start, StatusFailed, fmt.Errorf("node %s: %w", current, r.Err)), nil
		}

		if r.Handoff == nil {
			return s.result(st, start, StatusCompleted, nil), nil
		}

		target := r.Handoff.Target
		if _, ok := s.members[target]; !ok {
			return s.result(st, start, StatusFailed, fmt.Errorf("%w: %q", ErrUnknownHandoffTarget, target)), nil
		}

		if prog.handoffs >= s.maxHandoffs {
			s.logger.Warn("swarm.limit", "name", s.name, "max_handoffs", s.maxHandoffs)
			return s.result(st, start, StatusFailed, ErrMaxHandoffs), nil
		}

		prog.handoffs++
		st.recordHandoff(current, r.Handoff)

		if err := emit(&HandoffEvent{From: current, To: target, Message: r.Handoff.Message}); err != nil {
			return s.result(st, start, StatusFailed, err), err
		}

		s.telemetry.Handoff(ctx, s.kind, current, target)

		if l, ok := s.logger.(handoffLogger); ok {
			l.LogHandoff(current, target, r.Handoff.Message)
		} else {
			s.logger.Info("swarm.handoff", "from", current, "to", target)
		}

		if s.isRepetitive(append(slices.Clone(prog.history), target)) {
			return s.result(st, start, StatusFailed, ErrRepetitiveHandoff), nil
		}

		prog.current = target
	}
}

// isRepetitive reports whether the trailing window of activations involves
// too few distinct members.
func (s *Swarm) isRepetitive(history []string) bool {
	if s.repeatWindow <= 0 || len(history) < s.repeatWindow {
		return false
	}

	unique := map[string]bool{}
	for _, id := range history[len(history)-s.repeatWindow:] {
		unique[id] = true
	}

	return len(unique) < s.repeatMinUnique
}

// buildInput composes the task context handed to the active member.
func (s *Swarm) buildInput(st *State, prog *swarmProgress) core.Content {
	task := st.Task()

	var sb strings.Builder

	if msg := st.HandoffMessage(); msg != "" {
		fmt.Fprintf(&sb, "Handoff Message: %s\n\n", msg)
	}

	fmt.Fprintf(&sb, "User Request: %s\n\n", task.Text())

	if prev := prog.history[:len(prog.history)-1]; len(prev) > 0 {
		fmt.Fprintf(&sb, "Previous agents who worked on this: %s\n\n", strings.Join(prev, " → "))
	}

	if shared := st.SharedContext(); len(shared) > 0 {
		sb.WriteString("Shared knowledge from previous agents:\n")

		ids := make([]string, 0, len(shared))
		for id := range shared {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range ids {
			data, err := json.Marshal(shared[id])
			if err != nil {
				data = []byte(fmt.Sprint(shared[id]))
			}
			fmt.Fprintf(&sb, "• %s: %s\n", id, data)
		}

		sb.WriteString("\n")
	}

	var others []string
	for _, id := range s.order {
		if id != prog.current {
			others = append(others, fmt.Sprintf("Agent name: %s. Agent description: %s", id, s.members[id].description))
		}
	}

	if len(others) > 0 {
		sb.WriteString("Other agents available for collaboration:\n")
		sb.WriteString(strings.Join(others, "\n"))
		sb.WriteString("\n\n")
		sb.WriteString("You can hand off to another agent if you need help. If you do not hand off, the swarm considers the task complete.")
	}

	parts := []core.Part{core.TextPart{Text: strings.TrimSpace(sb.String())}}
	for _, p := range task.Parts {
		if _, isText := p.(core.TextPart); !isText {
			parts = append(parts, p)
		}
	}

	return core.Content{Role: core.RoleUser, Parts: parts}
}

func (s *Swarm) result(st *State, segmentStart time.Time, status Status, err error) *Result {
	prog := st.swarm

	return &Result{
		Status:         status,
		Duration:       prog.elapsed + time.Since(segmentStart),
		ExecutionCount: len(prog.history),
		NodeHistory:    slices.Clone(prog.history),
		Results:        st.resultsCopy(),
		Usage:          prog.usage,
		Err:            err,
	}
}
