package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/hook"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/multiagent"
	"github.com/hupe1980/agentgraph/tool"
)

// BuildOptions supplies the runtime collaborators a document cannot describe.
type BuildOptions struct {
	// Tools is the pool agent and member tool names resolve against.
	Tools          []tool.Tool
	Logger         logging.Logger
	HookProviders  []hook.Provider
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func buildOptions(optFns []func(o *BuildOptions)) BuildOptions {
	opts := BuildOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return opts
}

// NewLogger builds the structured logger described by the logging section.
func (c *Config) NewLogger(out io.Writer) *logging.StructuredLogger {
	level, _ := logging.ParseLevel(c.Logging.Level)

	cfg := logging.DefaultLoggerConfig()
	cfg.Level = level
	cfg.Format = strings.ToLower(c.Logging.Format)
	cfg.AddSource = c.Logging.AddSource
	cfg.Component = c.Logging.Component
	if out != nil {
		cfg.Output = out
	}

	return logging.NewLogger(cfg)
}

// BuildAgents creates one model agent per agent entry, all backed by llm.
// Tool names that do not resolve against the pool are skipped with a warning.
func BuildAgents(cfg *Config, llm model.Model, optFns ...func(o *BuildOptions)) (map[string]core.Agent, error) {
	opts := buildOptions(optFns)

	pool, err := tool.NewSet(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("tool pool: %w", err)
	}

	agents := make(map[string]core.Agent, len(cfg.Agents))

	for _, ac := range cfg.Agents {
		selected, missing := pool.Filter(ac.Tools)
		if ac.Tools == nil {
			selected = nil
		}

		for _, name := range missing {
			opts.Logger.Warn("config.tool.unknown", "agent", ac.Name, "tool", name)
		}

		agents[ac.Name] = agent.NewModelAgent(ac.Name, llm, func(o *agent.ModelAgentOptions) {
			o.Description = ac.Description
			if ac.Instruction != "" {
				o.Instruction = agent.NewInstructionFromText(ac.Instruction)
			}
			o.Tools = selected
			o.OutputKey = ac.OutputKey
			o.EnableStreaming = ac.Streaming
			o.MaxHistoryMessages = ac.MaxHistoryMessages
			o.TracerProvider = opts.TracerProvider
			o.MeterProvider = opts.MeterProvider
		})
	}

	opts.Logger.Debug("config.agents.built", "count", len(agents))

	return agents, nil
}

func (c *Config) common(name string, opts BuildOptions) multiagent.CommonOptions {
	return multiagent.CommonOptions{
		Name:           name,
		HookProviders:  opts.HookProviders,
		Logger:         opts.Logger,
		TracerProvider: opts.TracerProvider,
		MeterProvider:  opts.MeterProvider,
		EventBuffer:    c.Runtime.EventBuffer,
	}
}

// BuildGraph creates the graph described by the graph section.
func BuildGraph(cfg *Config, agents map[string]core.Agent, optFns ...func(o *BuildOptions)) (*multiagent.Graph, error) {
	if cfg.Graph == nil {
		return nil, errors.New("config: no graph section")
	}

	opts := buildOptions(optFns)
	gc := cfg.Graph

	b := multiagent.NewGraphBuilder()

	for _, n := range gc.Nodes {
		a, ok := agents[n.Agent]
		if !ok {
			return nil, fmt.Errorf("config: graph node %q: agent %q not built", n.ID, n.Agent)
		}

		b.AddAgent(n.ID, a, func(o *multiagent.AgentNodeOptions) {
			o.MaxModelCalls = cfg.Runtime.MaxModelCalls
		})
	}

	for _, e := range gc.Edges {
		if e.When == nil {
			b.AddEdge(e.From, e.To)
			continue
		}

		if e.When.Node != "" {
			b.AddEdge(e.From, e.To, multiagent.WhenOutputContains(e.When.Node, e.When.Contains))
		} else {
			b.AddEdge(e.From, e.To, multiagent.WhenValueEquals(e.When.Key, e.When.Equals))
		}
	}

	b.WithOptions(func(o *multiagent.GraphOptions) {
		o.CommonOptions = cfg.common(gc.Name, opts)
		o.EntryPoints = gc.EntryPoints
		o.MaxNodeExecutions = gc.MaxNodeExecutions
		o.MaxConcurrency = gc.MaxConcurrency
	})

	return b.Build()
}

// BuildSwarm creates the swarm described by the swarm section. Zero limits
// keep the swarm defaults.
func BuildSwarm(cfg *Config, agents map[string]core.Agent, optFns ...func(o *BuildOptions)) (*multiagent.Swarm, error) {
	if cfg.Swarm == nil {
		return nil, errors.New("config: no swarm section")
	}

	opts := buildOptions(optFns)
	sc := cfg.Swarm

	specs := make([]multiagent.AgentSpec, 0, len(sc.Members))

	for _, m := range sc.Members {
		a, ok := agents[m.Agent]
		if !ok {
			return nil, fmt.Errorf("config: swarm member %q: agent not built", m.Agent)
		}

		spec := multiagent.AgentSpec{Name: m.Name, Agent: a, Tools: m.Tools}
		if spec.Name == "" {
			spec.Name = m.Agent
		}

		if spec.Tools == nil {
			spec.Tools = []string{}
		}

		if ac, ok := cfg.agent(m.Agent); ok {
			spec.Description = ac.Description
		}

		specs = append(specs, spec)
	}

	return multiagent.NewSwarmFromSpecs(specs, func(o *multiagent.SwarmOptions) {
		o.CommonOptions = cfg.common(sc.Name, opts)
		o.EntryPoint = sc.EntryPoint
		o.Tools = opts.Tools
		o.MaxModelCalls = cfg.Runtime.MaxModelCalls
		o.RepetitiveHandoffWindow = sc.RepetitiveHandoffWindow
		o.RepetitiveHandoffMinUnique = sc.RepetitiveHandoffMinUnique

		if sc.MaxHandoffs > 0 {
			o.MaxHandoffs = sc.MaxHandoffs
		}

		if sc.MaxIterations > 0 {
			o.MaxIterations = sc.MaxIterations
		}
	})
}
