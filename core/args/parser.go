package args

import "fmt"

// Grammar literals.
const (
	// FlagStdin opens a stdin-mode exec spec.
	FlagStdin = "-exec"
	// FlagPositional opens a positional-mode exec spec.
	FlagPositional = "-exec{}"
	// Terminator ends a spec's argument list. It is consumed, never
	// passed to the child.
	Terminator = ";"
	// Placeholder marks a substitution slot in positional mode. In stdin
	// mode it passes through as a literal argument.
	Placeholder = "{}"
)

// ErrorKind classifies a ParseError.
type ErrorKind int

const (
	// UnknownOption is an unrecognized top-level token.
	UnknownOption ErrorKind = iota
	// InvalidUsage is a structurally broken exec spec.
	InvalidUsage
)

// ParseError is a fatal argument error. Index is the 1-based index of the
// offending token, 0 when the input ended before the expected token.
type ParseError struct {
	Kind    ErrorKind
	Token   string
	Index   int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case UnknownOption:
		return fmt.Sprintf("args: unknown option %q (argument %d)", e.Token, e.Index)
	default:
		if e.Index > 0 {
			return fmt.Sprintf("args: invalid usage of %s (argument %d): %s", e.Token, e.Index, e.Message)
		}
		return fmt.Sprintf("args: invalid usage of %s: %s", e.Token, e.Message)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse scans argv left to right and builds the ordered exec spec list.
//
// A token equal to -exec or -exec{} opens a spec: the next token is the
// command, and following tokens are arguments until a literal ";" (consumed)
// or the end of input. Any other top-level token is an unknown option.
func Parse(argv []string) (*Options, error) {
	opts := &Options{}
	i := 0
	for i < len(argv) {
		switch tok := argv[i]; tok {
		case FlagStdin, FlagPositional:
			next, err := parseSpec(argv, i, opts)
			if err != nil {
				return nil, err
			}
			i = next
		default:
			return nil, &ParseError{Kind: UnknownOption, Token: tok, Index: i + 1}
		}
	}
	return opts, nil
}

// parseSpec consumes one spec starting at the flag token argv[start] and
// returns the index of the first unconsumed token.
func parseSpec(argv []string, start int, opts *Options) (int, error) {
	flag := argv[start]
	mode := ModeStdin
	if flag == FlagPositional {
		mode = ModePositional
	}
	specNum := len(opts.Specs) + 1

	i := start + 1
	if i >= len(argv) {
		return 0, &ParseError{Kind: InvalidUsage, Token: flag, Message: "missing command"}
	}
	command := argv[i]
	if command == Terminator {
		opts.warn(specNum, i+1, fmt.Sprintf("command is the %q terminator literal", Terminator))
	}
	if mode == ModePositional && command == Placeholder {
		opts.warn(specNum, i+1, fmt.Sprintf("command is the %q placeholder literal; it is not substituted", Placeholder))
	}
	i++

	spec := ExecSpec{Mode: mode, Command: command}
	for i < len(argv) {
		tok := argv[i]
		if tok == Terminator {
			i++
			break
		}
		if tok == FlagStdin || tok == FlagPositional {
			opts.warn(specNum, i+1, fmt.Sprintf("argument %q looks like a new exec flag; missing %q terminator?", tok, Terminator))
		}
		if mode == ModePositional && tok == Placeholder {
			spec.Args = append(spec.Args, Argument{Placeholder: true})
		} else {
			spec.Args = append(spec.Args, Argument{Value: tok})
		}
		i++
	}

	if mode == ModePositional && spec.Placeholders() == 0 {
		opts.warn(specNum, 0, fmt.Sprintf("no %q placeholder given; command runs without substitution", Placeholder))
	}

	opts.Specs = append(opts.Specs, spec)
	return i, nil
}

func (o *Options) warn(spec, index int, message string) {
	o.Warnings = append(o.Warnings, Warning{Spec: spec, Index: index, Message: message})
}
