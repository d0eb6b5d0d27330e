package multiagent

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

const kindGraph = "graph"

// Edge is a dependency between two nodes. A nil Condition always holds.
type Edge struct {
	From      string
	To        string
	Condition func(st *State) bool
}

// GraphOptions configures a Graph.
type GraphOptions struct {
	CommonOptions
	// EntryPoints defaults to all nodes without incoming edges.
	EntryPoints []string
	// MaxNodeExecutions caps activations per run (0 = unlimited).
	MaxNodeExecutions int
	// MaxConcurrency bounds parallel nodes of a ready batch (0 = whole batch).
	MaxConcurrency int
}

// Graph executes nodes along a directed acyclic graph.
type Graph struct {
	orchestration

	nodes             map[string]*Node
	order             []string
	incoming          map[string][]Edge
	entry             map[string]bool
	entryPoints       []string
	maxNodeExecutions int
	maxConcurrency    int
}

var _ Orchestrator = (*Graph)(nil)

type graphProgress struct {
	history     []string
	count       int
	interrupted []string
	usage       core.Usage
	elapsed     time.Duration
}

// NewGraph validates the topology and creates a Graph.
func NewGraph(nodes []*Node, edges []Edge, optFns ...func(o *GraphOptions)) (*Graph, error) {
	opts := GraphOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if len(nodes) == 0 {
		return nil, configErrorf(kindGraph, "at least one node is required")
	}

	if opts.MaxNodeExecutions < 0 {
		return nil, configErrorf(kindGraph, "max node executions must not be negative")
	}

	if opts.MaxConcurrency < 0 {
		return nil, configErrorf(kindGraph, "max concurrency must not be negative")
	}

	g := &Graph{
		orchestration:     newOrchestration(kindGraph, opts.CommonOptions),
		nodes:             make(map[string]*Node, len(nodes)),
		incoming:          map[string][]Edge{},
		entry:             map[string]bool{},
		maxNodeExecutions: opts.MaxNodeExecutions,
		maxConcurrency:    opts.MaxConcurrency,
	}

	for _, n := range nodes {
		if n == nil || n.ID() == "" {
			return nil, configErrorf(kindGraph, "nodes must have an id")
		}

		if _, dup := g.nodes[n.ID()]; dup {
			return nil, configErrorf(kindGraph, "duplicate node id %q", n.ID())
		}

		g.nodes[n.ID()] = n
		g.order = append(g.order, n.ID())
	}

	slices.Sort(g.order)

	outgoing := map[string][]string{}
	for _, e := range edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, configErrorf(kindGraph, "edge references unknown node %q", e.From)
		}

		if _, ok := g.nodes[e.To]; !ok {
			return nil, configErrorf(kindGraph, "edge references unknown node %q", e.To)
		}

		g.incoming[e.To] = append(g.incoming[e.To], e)
		outgoing[e.From] = append(outgoing[e.From], e.To)
	}

	if cycle := findCycle(g.order, outgoing); cycle != nil {
		return nil, configErrorf(kindGraph, "cycle detected: %s", strings.Join(cycle, " -> "))
	}

	g.entryPoints = slices.Clone(opts.EntryPoints)
	if len(g.entryPoints) == 0 {
		for _, id := range g.order {
			if len(g.incoming[id]) == 0 {
				g.entryPoints = append(g.entryPoints, id)
			}
		}
	}

	for _, id := range g.entryPoints {
		if _, ok := g.nodes[id]; !ok {
			return nil, configErrorf(kindGraph, "entry point %q is not a node", id)
		}

		g.entry[id] = true
	}

	return g, nil
}

// findCycle returns a cycle as a node path, or nil.
func findCycle(order []string, outgoing map[string][]string) []string {
	const (
		white = iota
		gray
		black
	)

	color := map[string]int{}
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)

		for _, next := range outgoing[id] {
			switch color[next] {
			case gray:
				start := slices.Index(stack, next)
				return append(slices.Clone(stack[start:]), next)
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black

		return nil
	}

	for _, id := range order {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// EntryPoints returns the entry node ids.
func (g *Graph) EntryPoints() []string { return slices.Clone(g.entryPoints) }

// Stream starts a run for task.
func (g *Graph) Stream(ctx context.Context, task core.Content) (*Run, error) {
	return g.stream(ctx, task, g.run)
}

// Resume answers the pending interrupts of the suspended run and continues it.
func (g *Graph) Resume(ctx context.Context, responses []interrupt.Response) (*Run, error) {
	return g.resume(ctx, responses, g.run)
}

// Invoke runs task to completion or suspension.
func (g *Graph) Invoke(ctx context.Context, task core.Content) (Outcome, error) {
	run, err := g.Stream(ctx, task)
	if err != nil {
		return nil, err
	}

	return run.Wait()
}

func (g *Graph) execute(ctx context.Context, st *State, resumed bool, emit func(Event) error) (*Result, error) {
	return g.invoke(ctx, st, resumed, emit, g.run)
}

func (g *Graph) run(ctx context.Context, st *State, _ bool, emit func(Event) error) (*Result, error) {
	if st.graph == nil {
		st.graph = &graphProgress{}
	}

	prog := st.graph
	start := time.Now()

	defer func() { prog.elapsed += time.Since(start) }()

	for {
		if err := ctx.Err(); err != nil {
			return g.result(st, start, StatusFailed, err), err
		}

		batch, rerun := g.nextBatch(st, prog)
		if len(batch) == 0 {
			break
		}

		if !rerun {
			if g.maxNodeExecutions > 0 {
				if prog.count >= g.maxNodeExecutions {
					g.logger.Warn("multiagent.graph.limit", "name", g.name, "max_node_executions", g.maxNodeExecutions)
					return g.result(st, start, StatusFailed, ErrMaxNodeExecutions), nil
				}

				if remaining := g.maxNodeExecutions - prog.count; len(batch) > remaining {
					batch = batch[:remaining]
				}
			}

			for _, n := range batch {
				prog.history = append(prog.history, n.ID())
				prog.count++
			}
		}

		results, err := g.runBatch(ctx, batch, st, emit)
		if err != nil {
			return g.result(st, start, StatusFailed, err), err
		}

		var interrupts []*interrupt.Interrupt

		for _, r := range results {
			prog.usage = prog.usage.Add(r.Usage)

			if r.Status == StatusInterrupted {
				prog.interrupted = append(prog.interrupted, r.NodeID)
				interrupts = append(interrupts, r.Interrupts...)
				continue
			}

			st.recordResult(r)
		}

		if len(prog.interrupted) > 0 {
			return g.result(st, start, StatusInterrupted, nil), &interrupt.Signal{Interrupts: interrupts}
		}
	}

	var failures []error
	for _, id := range prog.history {
		if r, ok := st.Result(id); ok && r.Status == StatusFailed {
			failures = append(failures, fmt.Errorf("node %s: %w", id, r.Err))
		}
	}

	if len(failures) > 0 {
		return g.result(st, start, StatusFailed, errors.Join(failures...)), nil
	}

	return g.result(st, start, StatusCompleted, nil), nil
}

// nextBatch returns interrupted nodes of the previous segment first, then
// the nodes that became runnable, sorted by id.
func (g *Graph) nextBatch(st *State, prog *graphProgress) ([]*Node, bool) {
	if len(prog.interrupted) > 0 {
		batch := make([]*Node, 0, len(prog.interrupted))
		for _, id := range prog.interrupted {
			batch = append(batch, g.nodes[id])
		}

		prog.interrupted = nil

		return batch, true
	}

	var batch []*Node

	for _, id := range g.order {
		if _, done := st.Result(id); done {
			continue
		}

		if g.isRunnable(st, id) {
			batch = append(batch, g.nodes[id])
		}
	}

	return batch, false
}

func (g *Graph) isRunnable(st *State, id string) bool {
	if g.entry[id] {
		return true
	}

	edges := g.incoming[id]
	if len(edges) == 0 {
		return false
	}

	for _, e := range edges {
		r, ok := st.Result(e.From)
		if !ok || r.Status != StatusCompleted {
			return false
		}

		if e.Condition != nil && !e.Condition(st) {
			return false
		}
	}

	return true
}

func (g *Graph) runBatch(ctx context.Context, batch []*Node, st *State, emit func(Event) error) ([]*NodeResult, error) {
	limit := g.maxConcurrency
	if limit <= 0 || limit > len(batch) {
		limit = len(batch)
	}

	g.logger.Debug("multiagent.graph.batch", "name", g.name, "size", len(batch), "concurrency", limit)

	results := make([]*NodeResult, len(batch))
	sem := semaphore.NewWeighted(int64(limit))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, n := range batch {
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			r, err := g.activate(egCtx, n, g.buildInput(st, n.ID()), st, emit)
			if err != nil {
				return err
			}

			results[i] = r

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// buildInput passes the task to entry nodes. Other nodes receive the task
// followed by the outputs of their completed predecessors.
func (g *Graph) buildInput(st *State, id string) core.Content {
	task := st.Task()

	var sb strings.Builder

	for _, e := range g.incoming[id] {
		r, ok := st.Result(e.From)
		if !ok || r.Status != StatusCompleted {
			continue
		}

		fmt.Fprintf(&sb, "\nFrom %s:\n  - %s\n", e.From, r.Text())
	}

	if sb.Len() == 0 {
		return task
	}

	text := "Original Task: " + task.Text() + "\n\nInputs from previous nodes:\n" + sb.String()

	parts := []core.Part{core.TextPart{Text: text}}
	for _, p := range task.Parts {
		if _, isText := p.(core.TextPart); !isText {
			parts = append(parts, p)
		}
	}

	return core.Content{Role: core.RoleUser, Parts: parts}
}

func (g *Graph) result(st *State, segmentStart time.Time, status Status, err error) *Result {
	prog := st.graph

	return &Result{
		Status:         status,
		Duration:       prog.elapsed + time.Since(segmentStart),
		ExecutionCount: prog.count,
		NodeHistory:    slices.Clone(prog.history),
		Results:        st.resultsCopy(),
		Usage:          prog.usage,
		Err:            err,
	}
}

// GraphBuilder assembles a Graph step by step.
type GraphBuilder struct {
	nodes  []*Node
	edges  []Edge
	optFns []func(o *GraphOptions)
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder { return &GraphBuilder{} }

// AddNode adds a node.
func (b *GraphBuilder) AddNode(n *Node) *GraphBuilder {
	b.nodes = append(b.nodes, n)
	return b
}

// AddAgent adds an agent node.
func (b *GraphBuilder) AddAgent(id string, a core.Agent, optFns ...func(o *AgentNodeOptions)) *GraphBuilder {
	return b.AddNode(NewAgentNode(id, a, optFns...))
}

// AddEdge adds a dependency. All given conditions must hold.
func (b *GraphBuilder) AddEdge(from, to string, conditions ...func(st *State) bool) *GraphBuilder {
	e := Edge{From: from, To: to}

	if len(conditions) > 0 {
		e.Condition = func(st *State) bool {
			for _, c := range conditions {
				if !c(st) {
					return false
				}
			}
			return true
		}
	}

	b.edges = append(b.edges, e)

	return b
}

// SetEntryPoints overrides the default entry points.
func (b *GraphBuilder) SetEntryPoints(ids ...string) *GraphBuilder {
	return b.WithOptions(func(o *GraphOptions) { o.EntryPoints = ids })
}

// SetMaxNodeExecutions caps activations per run.
func (b *GraphBuilder) SetMaxNodeExecutions(n int) *GraphBuilder {
	return b.WithOptions(func(o *GraphOptions) { o.MaxNodeExecutions = n })
}

// SetMaxConcurrency bounds parallel nodes of a batch.
func (b *GraphBuilder) SetMaxConcurrency(n int) *GraphBuilder {
	return b.WithOptions(func(o *GraphOptions) { o.MaxConcurrency = n })
}

// WithOptions applies arbitrary graph options.
func (b *GraphBuilder) WithOptions(fn func(o *GraphOptions)) *GraphBuilder {
	b.optFns = append(b.optFns, fn)
	return b
}

// Build validates and creates the Graph.
func (b *GraphBuilder) Build() (*Graph, error) {
	return NewGraph(b.nodes, b.edges, b.optFns...)
}

// WhenOutputContains holds when nodeID completed with text containing substr.
func WhenOutputContains(nodeID, substr string) func(st *State) bool {
	return func(st *State) bool {
		r, ok := st.Result(nodeID)
		return ok && r.Status == StatusCompleted && strings.Contains(r.Text(), substr)
	}
}

// WhenValueEquals holds when the shared value key equals want.
func WhenValueEquals(key string, want any) func(st *State) bool {
	return func(st *State) bool {
		v, ok := st.Get(key)
		return ok && reflect.DeepEqual(v, want)
	}
}
