package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pavelanni/examgen/internal/allocator"
	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/pool"
	"github.com/pavelanni/examgen/internal/prompt"
	"github.com/pavelanni/examgen/internal/render"
	"github.com/pavelanni/examgen/internal/store"
)

const (
	defaultNumGroups         = 7
	defaultQuestionsPerGroup = 5
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one test file per student group",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.String("questions-dir", "all-questions", "Directory with one subdirectory of pool files per test")
	f.String("output-dir", "generated-tests", "Directory receiving one subdirectory of group files per test")
	f.StringP("test", "t", "", "Test to generate (prompted if not given)")
	f.IntP("groups", "g", defaultNumGroups, "Number of student groups (prompted if not given)")
	f.IntP("questions-per-group", "n", defaultQuestionsPerGroup, "Questions per group (prompted if not given)")
	f.Uint64("seed", 0, "Random seed (0 = derive from the clock)")
	f.Int("max-attempts", allocator.DefaultMaxAttempts, "Draws tried per group before giving up")
	f.String("course", "PJiSP", "Course name shown in the header of every group file")
	f.StringP("lang", "l", "en", "Language of prompts and headers (en, sr)")
	f.String("db", "examgen.db", "SQLite history database (empty disables history)")
	f.BoolP("yes", "y", false, "Delete an existing output directory without asking")
	return cmd
}

type generateOptions struct {
	QuestionsDir string
	OutputDir    string
	DBPath       string
	Course       string
	Yes          bool
	MaxAttempts  int
	Seed         uint64

	// Values given on the command line skip their prompt.
	TestID            string
	NumGroups         int
	QuestionsPerGroup int
	AskTest           bool
	AskGroups         bool
	AskPerGroup       bool
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := i18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	if !i18n.Supported(lang) {
		slog.Warn("unsupported language, using en", "lang", lang)
		lang = "en"
	}
	ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(lang))

	changed := cmd.Flags().Changed
	opts := generateOptions{
		QuestionsDir:      v.GetString("questions-dir"),
		OutputDir:         v.GetString("output-dir"),
		DBPath:            v.GetString("db"),
		Course:            v.GetString("course"),
		Yes:               v.GetBool("yes"),
		MaxAttempts:       v.GetInt("max-attempts"),
		Seed:              v.GetUint64("seed"),
		TestID:            v.GetString("test"),
		NumGroups:         v.GetInt("groups"),
		QuestionsPerGroup: v.GetInt("questions-per-group"),
		AskTest:           !changed("test"),
		AskGroups:         !changed("groups"),
		AskPerGroup:       !changed("questions-per-group"),
	}

	p := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
	return generate(ctx, opts, p, cmd.OutOrStdout())
}

func generate(ctx context.Context, opts generateOptions, p *prompt.Prompter, out io.Writer) error {
	loader := pool.NewDirLoader(opts.QuestionsDir)
	tests, err := loader.ListTests()
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	if len(tests) == 0 {
		return errors.New(i18n.Td(ctx, "NoTests", map[string]any{"Dir": opts.QuestionsDir}))
	}

	cfg := model.GenerateConfig{
		TestID:            opts.TestID,
		NumGroups:         opts.NumGroups,
		QuestionsPerGroup: opts.QuestionsPerGroup,
		Seed:              opts.Seed,
		MaxAttempts:       opts.MaxAttempts,
		Course:            opts.Course,
	}
	if err := askParameters(ctx, opts, p, tests, &cfg); err != nil {
		return err
	}

	outDir := filepath.Join(opts.OutputDir, cfg.TestID)
	exists, err := render.Exists(outDir)
	if err != nil {
		return fmt.Errorf("check %s: %w", outDir, err)
	}
	if exists && !opts.Yes {
		ok, err := p.ConfirmOverwrite(ctx, outDir)
		if err != nil {
			return fmt.Errorf("confirm overwrite: %w", err)
		}
		if !ok {
			fmt.Fprintln(out, i18n.T(ctx, "NothingChanged"))
			return nil
		}
	}

	pools, sources, err := loader.Load(cfg.TestID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	slog.Info("generating tests",
		"test", cfg.TestID,
		"groups", cfg.NumGroups,
		"questions_per_group", cfg.QuestionsPerGroup,
		"seed", cfg.Seed,
	)

	writer := render.NewWriter(outDir, cfg.TestID, func(testID string, groupID int) string {
		return i18n.Td(ctx, "TestHeader", map[string]any{
			"Course": cfg.Course,
			"Test":   testID,
			"Group":  groupID,
		})
	})
	sink := allocator.MultiSink{writer}

	var (
		history *store.Store
		runID   = uuid.NewString()
	)
	if opts.DBPath != "" {
		history, err = store.New(opts.DBPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer history.Close()

		runID, err = history.CreateRun(runID, cfg)
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		if err := history.RecordPools(runID, sources); err != nil {
			return fmt.Errorf("record pools: %w", err)
		}
		sink = append(sink, history.Recorder(runID))
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	alloc := allocator.New(rng, allocator.WithMaxAttempts(cfg.MaxAttempts))
	groups, allocErr := alloc.Allocate(pools, cfg.NumGroups, cfg.QuestionsPerGroup, sink)

	status := model.RunCompleted
	if allocErr != nil {
		status = model.RunFailed
	}
	if err := finishRun(writer, history, runID, cfg, status); err != nil {
		if allocErr == nil {
			return err
		}
		slog.Error("finish run", "error", err)
	}
	if allocErr != nil {
		if len(groups) > 0 {
			slog.Warn("keeping files of groups generated before the failure", "files", writer.Files())
		}
		return fmt.Errorf("allocate questions: %w", allocErr)
	}

	fmt.Fprintln(out, i18n.Tp(ctx, "GroupsGenerated", len(groups)))
	fmt.Fprintln(out, i18n.T(ctx, "Done"))
	return nil
}

func askParameters(ctx context.Context, opts generateOptions, p *prompt.Prompter, tests []string, cfg *model.GenerateConfig) error {
	var err error
	if opts.AskTest {
		if cfg.TestID, err = p.ChooseTest(ctx, tests); err != nil {
			return fmt.Errorf("choose test: %w", err)
		}
	} else if _, err := prompt.Choice(tests, false)(cfg.TestID); err != nil {
		return fmt.Errorf("%w: %q", pool.ErrUnknownTest, cfg.TestID)
	}

	if opts.AskGroups {
		if cfg.NumGroups, err = p.Int(ctx, "NumGroups", opts.NumGroups); err != nil {
			return fmt.Errorf("read number of groups: %w", err)
		}
	}
	if opts.AskPerGroup {
		if cfg.QuestionsPerGroup, err = p.Int(ctx, "QuestionsPerGroup", opts.QuestionsPerGroup); err != nil {
			return fmt.Errorf("read questions per group: %w", err)
		}
	}
	return nil
}

func finishRun(w *render.Writer, history *store.Store, runID string, cfg model.GenerateConfig, status model.RunStatus) error {
	err := w.WriteManifest(render.Manifest{
		RunID:             runID,
		Test:              cfg.TestID,
		Seed:              cfg.Seed,
		QuestionsPerGroup: cfg.QuestionsPerGroup,
		Status:            status,
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if history != nil {
		if err := history.FinishRun(runID, status); err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
	}
	return nil
}
