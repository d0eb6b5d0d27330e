package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentgraph/core"
)

// Provider supplies instruction text at invocation time.
type Provider interface {
	Instruction(ic *core.InvocationContext) (string, error)
}

// Func adapts a function to Provider.
type Func func(ic *core.InvocationContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ic *core.InvocationContext) (string, error) { return f(ic) }

// Instruction is the system prompt of a model agent. The resolved text is
// rendered as a text/template against session state by the flow, so static
// text may reference shared values such as {{.topic}}.
type Instruction struct {
	parts []Provider
	text  string
}

// NewInstructionFromText creates a static instruction.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an instruction resolved by p.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{parts: []Provider{p}} }

// NewInstructionFromFunc creates an instruction resolved by fn.
func NewInstructionFromFunc(fn func(ic *core.InvocationContext) (string, error)) Instruction {
	return NewInstructionFromProvider(Func(fn))
}

// NewInstructionFromState reads the instruction from the session value key.
// Orchestrated agents see the run's shared values there, so an earlier node
// can steer a later one. fallback is used while the key is unset.
func NewInstructionFromState(key, fallback string) Instruction {
	return NewInstructionFromFunc(func(ic *core.InvocationContext) (string, error) {
		v, ok := ic.GetState(key)
		if !ok || v == nil {
			return fallback, nil
		}

		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("instruction state %q holds %T, want string", key, v)
		}

		return s, nil
	})
}

// Join concatenates instructions with blank lines in between. Empty parts
// are skipped.
func Join(instructions ...Instruction) Instruction {
	var parts []Provider
	for _, in := range instructions {
		parts = append(parts, Func(in.Resolve))
	}

	return Instruction{parts: parts}
}

// IsStatic reports whether the instruction is plain text.
func (i Instruction) IsStatic() bool { return len(i.parts) == 0 }

// Resolve returns the instruction text.
func (i Instruction) Resolve(ic *core.InvocationContext) (string, error) {
	if i.IsStatic() {
		return i.text, nil
	}

	texts := make([]string, 0, len(i.parts))
	for _, p := range i.parts {
		text, err := p.Instruction(ic)
		if err != nil {
			return "", err
		}

		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, "\n\n"), nil
}
