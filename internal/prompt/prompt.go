package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/pavelanni/examgen/internal/i18n"
)

var (
	// ErrInvalidChoice marks input that is not one of the offered choices.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrInvalidInteger marks input that is not a positive integer.
	ErrInvalidInteger = errors.New("invalid integer")
)

// InputError describes rejected operator input. It unwraps to its Kind.
type InputError struct {
	Kind  error
	Value string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %q", e.Kind, e.Value)
}

func (e *InputError) Unwrap() error { return e.Kind }

// Validator turns raw input into a value or rejects it.
type Validator[T any] func(input string) (T, error)

// Choice accepts exactly one of choices. If fold is set the comparison ignores case
// and the matching choice is returned.
func Choice(choices []string, fold bool) Validator[string] {
	return func(input string) (string, error) {
		for _, c := range choices {
			if c == input || fold && strings.EqualFold(c, input) {
				return c, nil
			}
		}
		return "", &InputError{Kind: ErrInvalidChoice, Value: input}
	}
}

// PositiveInt accepts integers greater than zero.
func PositiveInt(input string) (int, error) {
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 {
		return 0, &InputError{Kind: ErrInvalidInteger, Value: input}
	}
	return n, nil
}

// Prompter asks the operator questions on a line-oriented terminal.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	styled bool
}

// New creates a Prompter reading answers from in and writing questions to out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, styled: isTerminal(out)}
}

// Ask shows text, reads one line and validates it, repeating until the input is
// accepted. An empty answer selects def when def is not empty. Rejected input is
// reported to the operator and never returned as an error; only read failures are.
func Ask[T any](ctx context.Context, p *Prompter, text, def string, validate Validator[T]) (T, error) {
	var zero T
	question := text + " "
	if def != "" {
		question = fmt.Sprintf("%s [%s] ", text, def)
	}

	for {
		if _, err := fmt.Fprint(p.out, p.style(question, "39")); err != nil {
			return zero, err
		}
		line, err := p.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				return zero, io.ErrUnexpectedEOF
			}
			return zero, err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			input = def
		}
		v, verr := validate(input)
		if verr == nil {
			return v, nil
		}
		fmt.Fprintln(p.out, p.style(i18n.Td(ctx, "ValidationFailed", map[string]any{
			"Error": describe(ctx, verr),
		}), "196"))
		if errors.Is(err, io.EOF) {
			return zero, io.ErrUnexpectedEOF
		}
	}
}

// ChooseTest asks which of the discovered tests to generate.
func (p *Prompter) ChooseTest(ctx context.Context, tests []string) (string, error) {
	text := i18n.Td(ctx, "ChooseTest", map[string]any{"Choices": strings.Join(tests, ", ")})
	return Ask(ctx, p, text, "", Choice(tests, false))
}

// Int asks for a positive integer using the message msgID.
func (p *Prompter) Int(ctx context.Context, msgID string, def int) (int, error) {
	return Ask(ctx, p, i18n.T(ctx, msgID), strconv.Itoa(def), PositiveInt)
}

// ConfirmOverwrite asks whether an existing output directory may be deleted.
func (p *Prompter) ConfirmOverwrite(ctx context.Context, dir string) (bool, error) {
	text := i18n.Td(ctx, "ConfirmOverwrite", map[string]any{"Dir": dir})
	answer, err := Ask(ctx, p, text, "", Choice([]string{"Y", "N"}, true))
	if err != nil {
		return false, err
	}
	return answer == "Y", nil
}

func describe(ctx context.Context, err error) string {
	var ie *InputError
	if !errors.As(err, &ie) {
		return err.Error()
	}
	switch {
	case errors.Is(ie, ErrInvalidChoice):
		return i18n.Td(ctx, "InvalidChoice", map[string]any{"Value": ie.Value})
	case errors.Is(ie, ErrInvalidInteger):
		return i18n.Td(ctx, "InvalidInteger", map[string]any{"Value": ie.Value})
	default:
		return ie.Error()
	}
}

func (p *Prompter) style(text, color string) string {
	if !p.styled {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
