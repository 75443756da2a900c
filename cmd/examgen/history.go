package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/render"
	"github.com/pavelanni/examgen/internal/store"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded generation runs",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("db", "examgen.db", "SQLite history database")
	f.StringP("test", "t", "", "Only show runs of this test")
	f.String("run", "", "Show the pools and groups of one run")
	f.StringP("lang", "l", "en", "Language of messages (en, sr)")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := i18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(lang))

	return history(ctx, v.GetString("db"), v.GetString("test"), v.GetString("run"), cmd.OutOrStdout())
}

// history prints the recorded runs, or one run when runID is set.
// A missing database means nothing was recorded; it is not created.
func history(ctx context.Context, dbPath, testID, runID string, out io.Writer) error {
	exists, err := render.Exists(dbPath)
	if err != nil {
		return fmt.Errorf("check database: %w", err)
	}
	if !exists {
		if runID != "" {
			return fmt.Errorf("get run %s: %w", runID, sql.ErrNoRows)
		}
		fmt.Fprintln(out, i18n.T(ctx, "NoRuns"))
		return nil
	}

	db, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if runID != "" {
		return showRun(db, runID, out)
	}
	return listRuns(ctx, db, testID, out)
}

func listRuns(ctx context.Context, db *store.Store, testID string, out io.Writer) error {
	runs, err := db.ListRuns(testID)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, i18n.T(ctx, "NoRuns"))
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  %s  %dx%d  seed=%d  %s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.TestID,
			r.NumGroups, r.QuestionsPerGroup, r.Seed, r.Status)
	}
	return nil
}

func showRun(db *store.Store, runID string, out io.Writer) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return fmt.Errorf("get run %s: %w", runID, err)
	}
	sources, err := db.GetRunPools(runID)
	if err != nil {
		return fmt.Errorf("get pools of %s: %w", runID, err)
	}
	groups, err := db.GetRunGroups(runID)
	if err != nil {
		return fmt.Errorf("get groups of %s: %w", runID, err)
	}

	fmt.Fprintf(out, "run %s: test %s, seed %d, %s\n", run.ID, run.TestID, run.Seed, run.Status)
	for _, src := range sources {
		fmt.Fprintf(out, "  pool %s  %d  sha256:%s\n", src.PoolID, src.NumQuestions, src.SHA256)
	}
	for _, g := range groups {
		ids := make([]string, len(g.QuestionIDs))
		for i, id := range g.QuestionIDs {
			ids[i] = id.String()
		}
		fmt.Fprintf(out, "  %s  %s\n", render.FileName(run.TestID, g.GroupID), strings.Join(ids, ", "))
	}
	return nil
}
