package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentgraph/logging"
)

// Load reads DefaultConfigFile. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom reads the YAML file at path, overlays the environment and
// validates the result. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the caller
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config yaml: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a YAML document over the defaults, overlays the environment
// and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config yaml: %w", err)
		}
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadEnv overlays non-empty AGENTGRAPH_* variables.
func loadEnv(cfg *Config) {
	setString(&cfg.Logging.Level, "AGENTGRAPH_LOG_LEVEL")
	setString(&cfg.Logging.Format, "AGENTGRAPH_LOG_FORMAT")
	setBool(&cfg.Logging.AddSource, "AGENTGRAPH_LOG_ADD_SOURCE")
	setInt(&cfg.Runtime.EventBuffer, "AGENTGRAPH_EVENT_BUFFER")
	setInt(&cfg.Runtime.MaxModelCalls, "AGENTGRAPH_MAX_MODEL_CALLS")

	if cfg.Graph != nil {
		setInt(&cfg.Graph.MaxNodeExecutions, "AGENTGRAPH_GRAPH_MAX_NODE_EXECUTIONS")
		setInt(&cfg.Graph.MaxConcurrency, "AGENTGRAPH_GRAPH_MAX_CONCURRENCY")
	}

	if cfg.Swarm != nil {
		setInt(&cfg.Swarm.MaxHandoffs, "AGENTGRAPH_SWARM_MAX_HANDOFFS")
		setInt(&cfg.Swarm.MaxIterations, "AGENTGRAPH_SWARM_MAX_ITERATIONS")
	}
}

func validate(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if f := strings.ToLower(cfg.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}

	if cfg.Runtime.EventBuffer < 1 {
		return errors.New("runtime.event_buffer must be >= 1")
	}

	if cfg.Runtime.MaxModelCalls < 0 {
		return errors.New("runtime.max_model_calls must be >= 0")
	}

	seen := map[string]bool{}
	for i, a := range cfg.Agents {
		if a.Name == "" {
			return fmt.Errorf("agents[%d].name is required", i)
		}

		if seen[a.Name] {
			return fmt.Errorf("agents[%d]: duplicate agent %q", i, a.Name)
		}

		seen[a.Name] = true
	}

	if g := cfg.Graph; g != nil {
		if len(g.Nodes) == 0 {
			return errors.New("graph.nodes must not be empty")
		}

		for i, n := range g.Nodes {
			if n.ID == "" {
				return fmt.Errorf("graph.nodes[%d].id is required", i)
			}

			if !seen[n.Agent] {
				return fmt.Errorf("graph.nodes[%d]: unknown agent %q", i, n.Agent)
			}
		}

		for i, e := range g.Edges {
			if w := e.When; w != nil && (w.Node == "") == (w.Key == "") {
				return fmt.Errorf("graph.edges[%d].when needs exactly one of node or key", i)
			}
		}
	}

	if s := cfg.Swarm; s != nil {
		if len(s.Members) == 0 {
			return errors.New("swarm.members must not be empty")
		}

		for i, m := range s.Members {
			if !seen[m.Agent] {
				return fmt.Errorf("swarm.members[%d]: unknown agent %q", i, m.Agent)
			}
		}
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
