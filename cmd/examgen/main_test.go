package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/examgen/internal/allocator"
	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/pool"
	"github.com/pavelanni/examgen/internal/prompt"
	"github.com/pavelanni/examgen/internal/render"
	"github.com/pavelanni/examgen/internal/store"
)

func writePools(t *testing.T, root, testID string, pools map[string]string) {
	t.Helper()
	dir := filepath.Join(root, testID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range pools {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type fixture struct {
	opts generateOptions
	ctx  context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	root := t.TempDir()
	questions := filepath.Join(root, "all-questions")
	writePools(t, questions, "K1", map[string]string{
		"A.txt":   "\nq0\n.\n\nq1\n.\n",
		"B.txt":   "q2\n.\n",
		"C.txt":   "q3\nwith two lines\n.\n",
		".hidden": "qh\n.\n",
	})
	writePools(t, questions, "K2", map[string]string{"A.txt": "a\n.\nb\n.\n"})

	return fixture{
		opts: generateOptions{
			QuestionsDir:      questions,
			OutputDir:         filepath.Join(root, "generated-tests"),
			DBPath:            filepath.Join(root, "examgen.db"),
			Course:            "PJiSP",
			Seed:              11,
			NumGroups:         defaultNumGroups,
			QuestionsPerGroup: defaultQuestionsPerGroup,
			AskTest:           true,
			AskGroups:         true,
			AskPerGroup:       true,
		},
		ctx: i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en")),
	}
}

func (f fixture) run(input string) (string, error) {
	var out bytes.Buffer
	err := generate(f.ctx, f.opts, prompt.New(strings.NewReader(input), &out), &out)
	return out.String(), err
}

func (f fixture) runs(t *testing.T) []model.Run {
	t.Helper()
	db, err := store.New(f.opts.DBPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer db.Close()
	runs, err := db.ListRuns("")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	return runs
}

func TestGenerateInteractive(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("K3\nK1\n1\n3\n")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "K3 is not a valid choice") {
		t.Errorf("expected re-prompt for unknown test:\n%s", out)
	}
	if !strings.Contains(out, "1 test generated.") {
		t.Errorf("missing summary:\n%s", out)
	}

	dir := filepath.Join(f.opts.OutputDir, "K1")
	data, err := os.ReadFile(filepath.Join(dir, "K1G1.txt"))
	if err != nil {
		t.Fatalf("read group file: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "//Questions for PJiSP K1G1\n*1\n/t\n") {
		t.Errorf("unexpected header:\n%s", content)
	}
	if !strings.Contains(content, "q2\n.\n") || !strings.Contains(content, "q3\nwith two lines\n.\n") {
		t.Errorf("expected the B and C questions:\n%s", content)
	}
	if strings.Contains(content, "qh") {
		t.Errorf("hidden pool was used:\n%s", content)
	}
	for i := 1; i <= 3; i++ {
		if strings.Count(content, "*"+string(rune('0'+i))+"\n/t\n") != 1 {
			t.Errorf("question %d marker missing:\n%s", i, content)
		}
	}

	m, err := render.ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Status != model.RunCompleted || m.Seed != 11 || len(m.Groups) != 1 {
		t.Errorf("unexpected manifest %+v", m)
	}

	runs := f.runs(t)
	if len(runs) != 1 || runs[0].Status != model.RunCompleted || runs[0].ID != m.RunID {
		t.Errorf("unexpected history %+v", runs)
	}
}

func TestGenerateDefaultsFromPrompt(t *testing.T) {
	f := newFixture(t)
	f.opts.AskTest = false
	f.opts.TestID = "K1"
	f.opts.NumGroups = 2
	f.opts.QuestionsPerGroup = 1

	out, err := f.run("\n\n")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	for _, name := range []string{"K1G1.txt", "K1G2.txt"} {
		if ok, _ := render.Exists(filepath.Join(f.opts.OutputDir, "K1", name)); !ok {
			t.Errorf("%s was not written", name)
		}
	}
}

func TestGenerateDeclineOverwrite(t *testing.T) {
	f := newFixture(t)
	f.opts.AskTest, f.opts.AskGroups, f.opts.AskPerGroup = false, false, false
	f.opts.TestID, f.opts.NumGroups, f.opts.QuestionsPerGroup = "K1", 1, 2

	stale := filepath.Join(f.opts.OutputDir, "K1", "old.txt")
	writePools(t, f.opts.OutputDir, "K1", map[string]string{"old.txt": "keep me"})

	out, err := f.run("x\nN\n")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "Nothing was changed.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if ok, _ := render.Exists(stale); !ok {
		t.Error("existing output was removed after declining")
	}
	if runs := f.runs(t); len(runs) != 0 {
		t.Errorf("expected no recorded run, got %d", len(runs))
	}
}

func TestGenerateInsufficientQuestions(t *testing.T) {
	f := newFixture(t)
	f.opts.AskTest, f.opts.AskGroups, f.opts.AskPerGroup = false, false, false
	f.opts.TestID, f.opts.NumGroups, f.opts.QuestionsPerGroup = "K1", 2, 3
	f.opts.Yes = true

	stale := filepath.Join(f.opts.OutputDir, "K1", "old.txt")
	writePools(t, f.opts.OutputDir, "K1", map[string]string{"old.txt": "keep me"})

	_, err := f.run("")
	if !errors.Is(err, allocator.ErrInsufficientQuestions) {
		t.Fatalf("expected ErrInsufficientQuestions, got %v", err)
	}
	if ok, _ := render.Exists(stale); !ok {
		t.Error("output directory was touched before allocation failed")
	}
	runs := f.runs(t)
	if len(runs) != 1 || runs[0].Status != model.RunFailed {
		t.Errorf("expected one failed run, got %+v", runs)
	}
}

func TestGenerateStarvedSinglePool(t *testing.T) {
	f := newFixture(t)
	f.opts.AskTest, f.opts.AskGroups, f.opts.AskPerGroup = false, false, false
	f.opts.TestID, f.opts.NumGroups, f.opts.QuestionsPerGroup = "K2", 1, 2
	f.opts.DBPath = ""

	_, err := f.run("")
	if !errors.Is(err, allocator.ErrStarvedAllocation) {
		t.Fatalf("expected ErrStarvedAllocation, got %v", err)
	}
	if ok, _ := render.Exists(filepath.Join(f.opts.OutputDir, "K2")); ok {
		t.Error("no group was produced, the output directory should not exist")
	}
}

func TestGenerateUnknownTestFlag(t *testing.T) {
	f := newFixture(t)
	f.opts.AskTest = false
	f.opts.TestID = ".hidden"

	_, err := f.run("")
	if !errors.Is(err, pool.ErrUnknownTest) {
		t.Fatalf("expected ErrUnknownTest, got %v", err)
	}
}

func TestListTests(t *testing.T) {
	f := newFixture(t)

	var out bytes.Buffer
	if err := listTests(f.ctx, pool.NewDirLoader(f.opts.QuestionsDir), f.opts.QuestionsDir, &out); err != nil {
		t.Fatalf("listTests: %v", err)
	}
	want := "K1: 4 questions\n" +
		"  A.txt: 2 questions\n" +
		"  B.txt: 1 question\n" +
		"  C.txt: 1 question\n" +
		"K2: 2 questions\n" +
		"  A.txt: 2 questions\n"
	if out.String() != want {
		t.Errorf("listTests output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestHistoryShowRun(t *testing.T) {
	f := newFixture(t)
	f.opts.AskTest, f.opts.AskGroups, f.opts.AskPerGroup = false, false, false
	f.opts.TestID, f.opts.NumGroups, f.opts.QuestionsPerGroup = "K1", 1, 3
	if _, err := f.run(""); err != nil {
		t.Fatalf("generate: %v", err)
	}

	db, err := store.New(f.opts.DBPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer db.Close()

	var list bytes.Buffer
	if err := listRuns(f.ctx, db, "K1", &list); err != nil {
		t.Fatalf("listRuns: %v", err)
	}
	if !strings.Contains(list.String(), "1x3  seed=11  completed") {
		t.Errorf("unexpected run list %q", list.String())
	}

	runs, err := db.ListRuns("K1")
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v, %d runs", err, len(runs))
	}
	var shown bytes.Buffer
	if err := showRun(db, runs[0].ID, &shown); err != nil {
		t.Fatalf("showRun: %v", err)
	}
	for _, want := range []string{"pool A.txt  2", "pool C.txt  1", "K1G1.txt  "} {
		if !strings.Contains(shown.String(), want) {
			t.Errorf("showRun output missing %q:\n%s", want, shown.String())
		}
	}
}

func TestHistoryMissingDatabase(t *testing.T) {
	f := newFixture(t)

	var out bytes.Buffer
	if err := history(f.ctx, f.opts.DBPath, "", "", &out); err != nil {
		t.Fatalf("history: %v", err)
	}
	if out.String() != "No generation runs recorded.\n" {
		t.Errorf("unexpected output %q", out.String())
	}
	if err := history(f.ctx, f.opts.DBPath, "", "some-run", &out); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for an unknown run, got %v", err)
	}
	if ok, _ := render.Exists(f.opts.DBPath); ok {
		t.Error("history created the database")
	}
}
