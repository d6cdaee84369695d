// Package program reads agent programs from YAML documents. Literals,
// expressions and body statements are written in a compact AgentSpeak
// style notation inside the YAML strings.
package program

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Harshitk-cp/bdi/internal/agent"
	"github.com/Harshitk-cp/bdi/internal/execution"
	"github.com/Harshitk-cp/bdi/internal/term"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a program.
type Document struct {
	Beliefs []string   `yaml:"beliefs"`
	Goal    string     `yaml:"goal"`
	Plans   []PlanSpec `yaml:"plans"`
	Rules   []RuleSpec `yaml:"rules"`
}

type PlanSpec struct {
	Trigger   string     `yaml:"trigger"`
	Atomic    bool       `yaml:"atomic"`
	Parallel  bool       `yaml:"parallel"`
	Score     *float64   `yaml:"score"`
	Fuzzy     float64    `yaml:"fuzzy"`
	Condition string     `yaml:"condition"`
	Body      []StepSpec `yaml:"body"`
}

type RuleSpec struct {
	Head         string       `yaml:"head"`
	Alternatives [][]StepSpec `yaml:"alternatives"`
}

// StepSpec is either a statement string or a lambda mapping.
type StepSpec struct {
	Statement string
	Lambda    *LambdaSpec
}

type LambdaSpec struct {
	Source   string     `yaml:"lambda"`
	Iterator string     `yaml:"iterator"`
	Parallel bool       `yaml:"parallel"`
	Return   string     `yaml:"return"`
	Body     []StepSpec `yaml:"body"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StepSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Statement)
	}
	var l LambdaSpec
	if err := node.Decode(&l); err != nil {
		return err
	}
	s.Lambda = &l
	return nil
}

// LoadFile reads the program at path.
func LoadFile(path string) (agent.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agent.Bundle{}, fmt.Errorf("read program: %w", err)
	}
	b, err := Load(bytes.NewReader(data))
	if err != nil {
		return agent.Bundle{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Load decodes a YAML program. Unknown fields are rejected.
func Load(r io.Reader) (agent.Bundle, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return agent.Bundle{}, fmt.Errorf("decode program: %w", err)
	}
	return doc.Bundle()
}

// Bundle parses every textual part of the document.
func (d Document) Bundle() (agent.Bundle, error) {
	var b agent.Bundle
	for _, s := range d.Beliefs {
		l, err := ParseLiteral(s)
		if err != nil {
			return agent.Bundle{}, fmt.Errorf("belief: %w", err)
		}
		b.Beliefs = append(b.Beliefs, l)
	}
	if d.Goal != "" {
		g, err := ParseLiteral(d.Goal)
		if err != nil {
			return agent.Bundle{}, fmt.Errorf("goal: %w", err)
		}
		b.InitialGoal = g
	}
	for i, spec := range d.Plans {
		p, err := spec.plan()
		if err != nil {
			return agent.Bundle{}, fmt.Errorf("plan %d (%s): %w", i, spec.Trigger, err)
		}
		b.Plans = append(b.Plans, p)
	}
	for i, spec := range d.Rules {
		r, err := spec.rule()
		if err != nil {
			return agent.Bundle{}, fmt.Errorf("rule %d (%s): %w", i, spec.Head, err)
		}
		b.Rules = append(b.Rules, r)
	}
	return b, nil
}

func (s PlanSpec) plan() (*agent.Plan, error) {
	typ, head, err := ParseTrigger(s.Trigger)
	if err != nil {
		return nil, err
	}
	p := &agent.Plan{
		Trigger: typ,
		Head:    head,
		Annotations: agent.Annotations{
			Atomic:   s.Atomic,
			Parallel: s.Parallel,
			Score:    s.Score,
			Fuzzy:    s.Fuzzy,
		},
	}
	if s.Condition != "" {
		if p.Condition, err = ParseExpression(s.Condition); err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
	}
	if p.Body, err = body(s.Body); err != nil {
		return nil, err
	}
	return p, nil
}

func (s RuleSpec) rule() (*agent.Rule, error) {
	head, err := ParseLiteral(s.Head)
	if err != nil {
		return nil, err
	}
	r := &agent.Rule{Head: head}
	for _, alt := range s.Alternatives {
		steps, err := body(alt)
		if err != nil {
			return nil, err
		}
		r.Alternatives = append(r.Alternatives, steps)
	}
	return r, nil
}

func body(specs []StepSpec) ([]execution.Step, error) {
	steps := make([]execution.Step, 0, len(specs))
	for _, spec := range specs {
		s, err := spec.step()
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (s StepSpec) step() (execution.Step, error) {
	if s.Lambda == nil {
		return ParseStep(s.Statement)
	}
	l := s.Lambda
	if l.Iterator == "" {
		return nil, fmt.Errorf("%w: lambda %q has no iterator", ErrSyntax, l.Source)
	}
	src, err := ParseExpression(l.Source)
	if err != nil {
		return nil, err
	}
	steps, err := body(l.Body)
	if err != nil {
		return nil, err
	}
	step := execution.LambdaStep{
		Parallel: l.Parallel,
		Source:   src,
		Iterator: term.NewVariable(term.Path(l.Iterator)),
		Body:     steps,
	}
	if l.Return != "" {
		step.Return = term.NewVariable(term.Path(l.Return))
	}
	return step, nil
}
