// Package args models and parses the -exec / -exec{} command-line
// mini-language.
package args

import (
	"fmt"
	"strings"
)

// Mode says how a child receives the captured data.
type Mode int

const (
	// ModeStdin wires the captured data to the child's standard input.
	ModeStdin Mode = iota
	// ModePositional substitutes a path to the captured data for each
	// placeholder argument.
	ModePositional
)

// Flag returns the command-line flag that selects this mode.
func (m Mode) Flag() string {
	if m == ModePositional {
		return FlagPositional
	}
	return FlagStdin
}

func (m Mode) String() string {
	return m.Flag()
}

// Argument is one parsed argument of an ExecSpec. Placeholder marks a `{}`
// slot in positional mode; stdin-mode specs never contain placeholders.
type Argument struct {
	Value       string
	Placeholder bool
}

// ExecSpec is one parsed -exec or -exec{} invocation: a command plus its
// ordered arguments.
type ExecSpec struct {
	Mode    Mode
	Command string
	Args    []Argument
}

// Placeholders counts the placeholder slots in the spec.
func (s ExecSpec) Placeholders() int {
	n := 0
	for _, a := range s.Args {
		if a.Placeholder {
			n++
		}
	}
	return n
}

// Argv renders the argument vector for spawning, substituting path for each
// placeholder slot. Stdin-mode specs have no slots and ignore path.
func (s ExecSpec) Argv(path string) []string {
	out := make([]string, 0, len(s.Args))
	for _, a := range s.Args {
		if a.Placeholder {
			out = append(out, path)
		} else {
			out = append(out, a.Value)
		}
	}
	return out
}

// String renders the spec roughly as it was written, for diagnostics.
func (s ExecSpec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", s.Mode.Flag(), s.Command)
	for _, a := range s.Args {
		if a.Placeholder {
			b.WriteString(" " + Placeholder)
		} else {
			fmt.Fprintf(&b, " %s", a.Value)
		}
	}
	b.WriteString(" " + Terminator)
	return b.String()
}

// Options is the ordered exec spec list built by the parser. Insertion
// order is invocation order is spawn order.
type Options struct {
	Specs []ExecSpec
	// Warnings are non-fatal usage anomalies found while parsing. They
	// advise the user and never change behavior.
	Warnings []Warning
}

// HasExec reports whether any exec spec was given.
func (o *Options) HasExec() bool {
	return len(o.Specs) > 0
}

// HasStdinExec reports whether any stdin-mode spec was given.
func (o *Options) HasStdinExec() bool {
	return o.hasMode(ModeStdin)
}

// HasPositionalExec reports whether any positional-mode spec was given.
func (o *Options) HasPositionalExec() bool {
	return o.hasMode(ModePositional)
}

func (o *Options) hasMode(m Mode) bool {
	for _, s := range o.Specs {
		if s.Mode == m {
			return true
		}
	}
	return false
}

// Warning is one non-fatal usage anomaly.
type Warning struct {
	// Spec is the 1-based number of the spec the anomaly belongs to.
	Spec int
	// Index is the 1-based index of the offending token, 0 when the
	// anomaly is about the spec as a whole.
	Index   int
	Message string
}

func (w Warning) String() string {
	if w.Index > 0 {
		return fmt.Sprintf("exec spec %d: %s (argument %d)", w.Spec, w.Message, w.Index)
	}
	return fmt.Sprintf("exec spec %d: %s", w.Spec, w.Message)
}

// RenderWarnings formats one warning per line for display.
func RenderWarnings(warnings []Warning) string {
	var b strings.Builder
	for _, w := range warnings {
		b.WriteString(w.String())
		b.WriteByte('\n')
	}
	return b.String()
}
