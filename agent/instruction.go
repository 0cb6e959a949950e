package agent

import "github.com/quiltt/activeagent-go/internal/util"

// InstructionSource supplies dynamic instruction text at generation time.
// Implementations can derive instructions from request state, environment,
// or external systems.
type InstructionSource interface {
	Instruction(state map[string]any) (string, error)
}

// InstructionFunc is a functional adapter to allow ordinary functions to be
// used as InstructionSources.
type InstructionFunc func(state map[string]any) (string, error)

// Instruction implements InstructionSource.
func (f InstructionFunc) Instruction(state map[string]any) (string, error) { return f(state) }

// Instruction represents either a static (possibly templated) instruction
// string or a dynamic source, a union of string | source in a Go-idiomatic
// way. Static text may contain Go template markers resolved against the
// generation's template state.
type Instruction struct {
	text   string
	source InstructionSource
}

// NewInstruction creates an Instruction from a static string.
func NewInstruction(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromSource creates an Instruction from a dynamic source.
func NewInstructionFromSource(s InstructionSource) Instruction { return Instruction{source: s} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(state map[string]any) (string, error)) Instruction {
	return Instruction{source: InstructionFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.source == nil }

// Resolve returns the instruction text, rendering templates or invoking the
// source as needed.
func (i Instruction) Resolve(state map[string]any) (string, error) {
	if i.source != nil {
		return i.source.Instruction(state)
	}
	return util.RenderTemplate(i.text, state)
}

// resolveInstructions renders the agent's instruction set against the given
// template state.
func resolveInstructions(instructions []Instruction, state map[string]any) ([]string, error) {
	if len(instructions) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(instructions))
	for _, ins := range instructions {
		text, err := ins.Resolve(state)
		if err != nil {
			return nil, err
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}
