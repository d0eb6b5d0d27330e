// Package config loads agentgraph settings and orchestrator topologies from
// YAML with environment overrides, and builds agents, graphs and swarms from
// them.
//
// The hierarchy is defaults < YAML < environment (AGENTGRAPH_*). A document
// describes agents by name; graph nodes and swarm members reference them:
//
//	agents:
//	  - name: researcher
//	    instruction: Find facts about the topic.
//	  - name: writer
//	    instruction: Write a short report.
//	graph:
//	  nodes:
//	    - id: research
//	      agent: researcher
//	    - id: write
//	      agent: writer
//	  edges:
//	    - from: research
//	      to: write
package config

// DefaultConfigFile is the path checked by Load.
const DefaultConfigFile = "agentgraph.yaml"

// Config is the root configuration document.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Agents  []AgentConfig `yaml:"agents"`
	Graph   *GraphConfig  `yaml:"graph"`
	Swarm   *SwarmConfig  `yaml:"swarm"`
}

// LoggingConfig selects the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
	Component string `yaml:"component"`
}

// RuntimeConfig holds limits shared by all orchestrators.
type RuntimeConfig struct {
	EventBuffer   int `yaml:"event_buffer"`
	MaxModelCalls int `yaml:"max_model_calls"`
}

// AgentConfig describes a model agent.
type AgentConfig struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	Instruction        string   `yaml:"instruction"`
	Tools              []string `yaml:"tools"`
	OutputKey          string   `yaml:"output_key"`
	Streaming          bool     `yaml:"streaming"`
	MaxHistoryMessages int      `yaml:"max_history_messages"`
}

// GraphConfig describes a graph topology.
type GraphConfig struct {
	Name              string       `yaml:"name"`
	Nodes             []NodeConfig `yaml:"nodes"`
	Edges             []EdgeConfig `yaml:"edges"`
	EntryPoints       []string     `yaml:"entry_points"`
	MaxNodeExecutions int          `yaml:"max_node_executions"`
	MaxConcurrency    int          `yaml:"max_concurrency"`
}

// NodeConfig binds a node id to an agent.
type NodeConfig struct {
	ID    string `yaml:"id"`
	Agent string `yaml:"agent"`
}

// EdgeConfig is a dependency with an optional condition.
type EdgeConfig struct {
	From string           `yaml:"from"`
	To   string           `yaml:"to"`
	When *ConditionConfig `yaml:"when"`
}

// ConditionConfig holds when node's output contains Contains, or when the
// shared value Key equals Equals.
type ConditionConfig struct {
	Node     string `yaml:"node"`
	Contains string `yaml:"contains"`
	Key      string `yaml:"key"`
	Equals   any    `yaml:"equals"`
}

// SwarmConfig describes a swarm.
type SwarmConfig struct {
	Name                       string         `yaml:"name"`
	Members                    []MemberConfig `yaml:"members"`
	EntryPoint                 string         `yaml:"entry_point"`
	MaxHandoffs                int            `yaml:"max_handoffs"`
	MaxIterations              int            `yaml:"max_iterations"`
	RepetitiveHandoffWindow    int            `yaml:"repetitive_handoff_window"`
	RepetitiveHandoffMinUnique int            `yaml:"repetitive_handoff_min_unique"`
}

// MemberConfig references an agent. Name defaults to the agent name; Tools
// overrides the agent's tool selection.
type MemberConfig struct {
	Agent string   `yaml:"agent"`
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Runtime: RuntimeConfig{EventBuffer: 64},
	}
}

func (c *Config) agent(name string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}
