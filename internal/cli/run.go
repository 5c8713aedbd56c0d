package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/bridge"
	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/orchestrator"
)

func newRunCmd() *cobra.Command {
	var (
		agent  string
		suites []string
		prompt string
		mock   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute test suites against an agent and print the result",
		Example: `  testbridge run --agent shixuanlin --suite ethics/compliance_audit --mock
  testbridge run --agent target --suite ethics/compliance_audit --suite adversarial/prompt_injection`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			registry := adapter.NewRegistry(config.NewResolver(cfg))
			orch := orchestrator.New(registry, cfg.Judge, orchestrator.WithLogger(slog.Default()))

			req := &domain.RunRequest{
				Agent:     agent,
				TestSuite: domain.NewSuiteList(suites...),
				Prompt:    prompt,
			}

			startedAt := time.Now()
			outcome, err := orch.Run(cmd.Context(), req, mock)
			if err != nil {
				return err
			}
			resp := bridge.Format(req, outcome, startedAt, time.Now())

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "agent name to test")
	cmd.Flags().StringArrayVar(&suites, "suite", nil, "suite ID to run (repeatable)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt overriding each suite's defaults")
	cmd.Flags().BoolVar(&mock, "mock", false, "return deterministic mock results")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("suite")
	return cmd
}
