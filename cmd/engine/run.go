package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/contest-maker-150/assessment/internal/data"
	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/executor"
	"github.com/contest-maker-150/assessment/internal/infrastructure"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		casesPath string
		language  string
	)

	cmd := &cobra.Command{
		Use:   "run <source-file>",
		Short: "Run a program against a file of test cases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := infrastructure.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := infrastructure.NewLogger(config.Server.Environment)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer infrastructure.SyncLogger(logger)

			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			file, err := data.LoadTestCaseFile(casesPath)
			if err != nil {
				return err
			}
			lang := domain.Language(language)
			if lang == "" {
				lang = file.Language
			}

			languages, err := data.LoadLanguageTable(config.Executor.LanguagesFile)
			if err != nil {
				return err
			}
			piston := executor.NewPistonClient(config.Executor.BaseURL, infrastructure.NewHTTPClient(0))
			runner := executor.NewRunner(piston, languages, config.Executor.Timeout, logger)

			results, err := runner.Run(cmd.Context(), lang, string(code), file.Cases)
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(out, "#\tSTATUS\tTIME\tEXPECTED\tACTUAL")
			for i, r := range results {
				fmt.Fprintf(out, "%d\t%s\t%.3fs\t%q\t%q\n", i+1, r.Status, r.ExecutionTime, r.ExpectedOutput, r.ActualOutput)
			}
			if err := out.Flush(); err != nil {
				return err
			}

			verdict := domain.Aggregate(results)
			fmt.Fprintln(cmd.OutOrStdout(), verdict.Message())
			if verdict.FirstError != "" {
				fmt.Fprintln(cmd.OutOrStdout(), verdict.FirstError)
			}
			if !verdict.AllPassed {
				return fmt.Errorf("%d of %d cases passed", verdict.Passed, verdict.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "testcases.yaml", "YAML file of test cases")
	cmd.Flags().StringVar(&language, "language", "", "language to run, defaults to the one in the cases file")
	return cmd
}
