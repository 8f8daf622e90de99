// Package steps describes the opaque processing steps a pipeline can
// schedule: each step kind declares its typed input and output ports and a
// scalar configuration schema. The descriptors carry no tool logic; they
// are the contract between graph construction and handler execution.
package steps

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Port declares a typed data port on a step. Image and transform ports
// carry file paths as strings; geometry ports carry numeric lists.
type Port struct {
	Name string
	Type cty.Type
}

// Option declares one scalar configuration attribute of a step. An Option
// with a NilVal Default is required and must be set at node construction.
type Option struct {
	Name    string
	Type    cty.Type
	Default cty.Value
}

// Config holds resolved scalar configuration values for one step instance.
type Config map[string]cty.Value

// Spec describes one step kind: the handler key, the typed ports, and the
// configuration schema.
type Spec struct {
	Kind    string
	Inputs  []Port
	Outputs []Port
	Options []Option
}

// Input returns the declared input port with the given name.
func (s Spec) Input(name string) (Port, bool) {
	for _, p := range s.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Output returns the declared output port with the given name.
func (s Spec) Output(name string) (Port, bool) {
	for _, p := range s.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Option returns the declared option with the given name.
func (s Spec) Option(name string) (Option, bool) {
	for _, o := range s.Options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Validate checks the descriptor for internal consistency: a non-empty
// kind, uniquely named ports and options, and concrete port types.
func (s Spec) Validate() error {
	if s.Kind == "" {
		return fmt.Errorf("step spec has empty kind")
	}
	if err := checkPorts(s.Kind, "input", s.Inputs); err != nil {
		return err
	}
	if err := checkPorts(s.Kind, "output", s.Outputs); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(s.Options))
	for _, o := range s.Options {
		if o.Name == "" {
			return fmt.Errorf("step %q has an unnamed option", s.Kind)
		}
		if _, dup := seen[o.Name]; dup {
			return fmt.Errorf("step %q declares option %q twice", s.Kind, o.Name)
		}
		seen[o.Name] = struct{}{}
		if o.Default != cty.NilVal && !o.Default.Type().Equals(o.Type) {
			return fmt.Errorf("step %q option %q: default is %s, want %s",
				s.Kind, o.Name, o.Default.Type().FriendlyName(), o.Type.FriendlyName())
		}
	}
	return nil
}

func checkPorts(kind, side string, ports []Port) error {
	seen := make(map[string]struct{}, len(ports))
	for _, p := range ports {
		if p.Name == "" {
			return fmt.Errorf("step %q has an unnamed %s port", kind, side)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("step %q declares %s port %q twice", kind, side, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Type == cty.NilType {
			return fmt.Errorf("step %q %s port %q has no type", kind, side, p.Name)
		}
	}
	return nil
}

// ResolveConfig merges the provided values over the schema defaults and
// returns the complete configuration for a step instance. Unknown names,
// type mismatches, and missing required options are rejected.
func (s Spec) ResolveConfig(cfg Config) (Config, error) {
	resolved := make(Config, len(s.Options))
	for _, o := range s.Options {
		if o.Default != cty.NilVal {
			resolved[o.Name] = o.Default
		}
	}
	for name, val := range cfg {
		opt, ok := s.Option(name)
		if !ok {
			return nil, fmt.Errorf("step %q has no option %q", s.Kind, name)
		}
		if !val.Type().Equals(opt.Type) {
			return nil, fmt.Errorf("step %q option %q: got %s, want %s",
				s.Kind, name, val.Type().FriendlyName(), opt.Type.FriendlyName())
		}
		resolved[name] = val
	}
	for _, o := range s.Options {
		if _, ok := resolved[o.Name]; !ok {
			return nil, fmt.Errorf("step %q requires option %q", s.Kind, o.Name)
		}
	}
	return resolved, nil
}
