package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pavelanni/examgen/internal/i18n"
)

func newTestPrompter(t *testing.T, input string) (*Prompter, *bytes.Buffer, context.Context) {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
	var out bytes.Buffer
	return New(strings.NewReader(input), &out), &out, ctx
}

func TestChoice(t *testing.T) {
	tests := []struct {
		name    string
		fold    bool
		input   string
		want    string
		wantErr bool
	}{
		{"exact", false, "K1", "K1", false},
		{"case mismatch", false, "k1", "", true},
		{"case folded", true, "k1", "K1", false},
		{"unknown", true, "K3", "", true},
		{"empty", false, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Choice([]string{"K1", "K2"}, tt.fold)(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChoice) {
					t.Fatalf("expected ErrInvalidChoice, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestPositiveInt(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"7", 7, false},
		{"1", 1, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"five", 0, true},
		{"2.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := PositiveInt(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInteger) {
					t.Fatalf("expected ErrInvalidInteger, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}

func TestChooseTestReprompts(t *testing.T) {
	p, out, ctx := newTestPrompter(t, "K9\n\nK2\n")

	got, err := p.ChooseTest(ctx, []string{"K1", "K2"})
	if err != nil {
		t.Fatalf("ChooseTest: %v", err)
	}
	if got != "K2" {
		t.Errorf("ChooseTest = %q, want K2", got)
	}
	if n := strings.Count(out.String(), "Choose a test (K1, K2):"); n != 3 {
		t.Errorf("expected 3 prompts, got %d:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "Validation failed: K9 is not a valid choice") {
		t.Errorf("missing validation message:\n%s", out.String())
	}
}

func TestIntDefault(t *testing.T) {
	p, out, ctx := newTestPrompter(t, "\n")

	got, err := p.Int(ctx, "NumGroups", 7)
	if err != nil {
		t.Fatalf("Int: %v", err)
	}
	if got != 7 {
		t.Errorf("Int = %d, want default 7", got)
	}
	if !strings.Contains(out.String(), "How many student groups? [7] ") {
		t.Errorf("unexpected prompt %q", out.String())
	}
}

func TestIntReprompts(t *testing.T) {
	p, out, ctx := newTestPrompter(t, "many\n0\n4")

	got, err := p.Int(ctx, "QuestionsPerGroup", 5)
	if err != nil {
		t.Fatalf("Int: %v", err)
	}
	if got != 4 {
		t.Errorf("Int = %d, want 4", got)
	}
	if n := strings.Count(out.String(), "is not a positive whole number"); n != 2 {
		t.Errorf("expected 2 rejections, got %d:\n%s", n, out.String())
	}
}

func TestConfirmOverwrite(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Y\n", true},
		{"y\n", true},
		{"N\n", false},
		{"maybe\nN\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			p, _, ctx := newTestPrompter(t, tt.input)
			got, err := p.ConfirmOverwrite(ctx, "generated-tests/K1")
			if err != nil {
				t.Fatalf("ConfirmOverwrite: %v", err)
			}
			if got != tt.want {
				t.Errorf("ConfirmOverwrite = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAskEOF(t *testing.T) {
	p, _, ctx := newTestPrompter(t, "K9\n")

	_, err := p.ChooseTest(ctx, []string{"K1"})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}
