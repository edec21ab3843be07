package dsl

import (
	"fmt"

	"github.com/aretw0/fsmsim/internal/machine"
	"github.com/aretw0/fsmsim/pkg/adapters/memory"
	"github.com/aretw0/fsmsim/pkg/domain"
)

// Builder manages the construction of one machine level.
type Builder struct {
	name        string
	states      []*StateBuilder
	index       map[string]*StateBuilder
	transitions []*TransitionBuilder
	comments    []domain.Comment
	metadata    domain.Metadata
}

// New creates a new machine builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		index: make(map[string]*StateBuilder),
	}
}

// State adds a state to the machine, in declaration order.
// If the state already exists, it returns the existing builder.
func (b *Builder) State(name string) *StateBuilder {
	if sb, ok := b.index[name]; ok {
		return sb
	}
	sb := &StateBuilder{
		def:     domain.StateDef{Name: name},
		builder: b,
	}
	b.index[name] = sb
	b.states = append(b.states, sb)
	return sb
}

// Comment attaches a diagram note to the machine.
func (b *Builder) Comment(text string) *Builder {
	b.comments = append(b.comments, domain.Comment{Text: text})
	return b
}

// Metadata sets a free-form annotation on the machine.
func (b *Builder) Metadata(key string, value any) *Builder {
	if b.metadata == nil {
		b.metadata = make(domain.Metadata)
	}
	b.metadata[key] = value
	return b
}

// Machine returns the description built so far without checking it.
func (b *Builder) Machine() domain.Machine {
	m := domain.Machine{
		Name:     b.name,
		Comments: b.comments,
		Metadata: b.metadata,
	}
	for _, sb := range b.states {
		m.States = append(m.States, sb.Build())
	}
	for _, tb := range b.transitions {
		m.Transitions = append(m.Transitions, tb.def)
	}
	return m
}

// Build returns the machine after checking that it compiles. Builder warnings
// such as a defaulted initial state are not errors.
func (b *Builder) Build() (domain.Machine, error) {
	m := b.Machine()
	if _, err := machine.Build(m, true); err != nil {
		return domain.Machine{}, fmt.Errorf("invalid machine %q: %w", b.name, err)
	}
	return m, nil
}

// Loader builds the machine and serves it from a memory.Loader under its name.
func (b *Builder) Loader() (*memory.Loader, error) {
	m, err := b.Build()
	if err != nil {
		return nil, err
	}
	return memory.NewLoader(map[string]domain.Machine{b.name: m}), nil
}
