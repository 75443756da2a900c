package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/pool"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tests and the question count of every pool",
		RunE:  runList,
	}
	f := cmd.Flags()
	f.String("questions-dir", "all-questions", "Directory with one subdirectory of pool files per test")
	f.StringP("lang", "l", "en", "Language of messages (en, sr)")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := i18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(lang))

	return listTests(ctx, pool.NewDirLoader(v.GetString("questions-dir")), v.GetString("questions-dir"), cmd.OutOrStdout())
}

func listTests(ctx context.Context, loader *pool.Loader, dir string, out io.Writer) error {
	tests, err := loader.ListTests()
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	if len(tests) == 0 {
		fmt.Fprintln(out, i18n.Td(ctx, "NoTests", map[string]any{"Dir": dir}))
		return nil
	}

	for _, testID := range tests {
		pools, sources, err := loader.Load(testID)
		if err != nil {
			return fmt.Errorf("load %s: %w", testID, err)
		}
		fmt.Fprintf(out, "%s: %s\n", testID, i18n.Tp(ctx, "QuestionsInPool", pools.Total()))
		for _, src := range sources {
			fmt.Fprintf(out, "  %s: %s\n", src.PoolID, i18n.Tp(ctx, "QuestionsInPool", src.NumQuestions))
		}
	}
	return nil
}
