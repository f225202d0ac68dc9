// Package main 单次执行计划的命令行工具，不做持久化
//
// 用法：
//
//	run-plan run -f plan.json [--config configs]
//	run-plan validate -f plan.json
//	run-plan models
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/config"
	"aida-engine/internal/domain/entity"
	"aida-engine/internal/infrastructure/eino/callback"
	"aida-engine/internal/wire"
	"aida-engine/pkg/logger"
)

// 退出码
const (
	exitRejected = 1
	exitUsage    = 2
	exitFailed   = 3
)

// exitError 携带进程退出码的错误
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

var (
	configDir string
	planPath  string
)

var rootCmd = &cobra.Command{
	Use:           "run-plan",
	Short:         "Execute a generation plan against the configured model catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a plan and print the workflow result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator, plan, err := setup(cmd.Context())
		if err != nil {
			return err
		}

		result, err := coordinator.Execute(cmd.Context(), plan)
		if err != nil {
			return &exitError{code: exitRejected, err: fmt.Errorf("plan rejected: %w", err)}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if result.Status == entity.WorkflowStatusFailed {
			return &exitError{code: exitFailed, err: fmt.Errorf("workflow %s failed", result.WorkflowID)}
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a plan against the catalog without calling providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator, plan, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		if err := coordinator.Validate(plan); err != nil {
			return &exitError{code: exitRejected, err: fmt.Errorf("plan rejected: %w", err)}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s is valid (%d steps)\n", plan.ID, len(plan.Steps))
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := wire.ProvideCatalog(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		printModels(cmd.OutOrStdout(), catalog.Models())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "configs", "config directory")
	for _, cmd := range []*cobra.Command{runCmd, validateCmd} {
		cmd.Flags().StringVarP(&planPath, "file", "f", "", "execution plan JSON (- for stdin)")
		_ = cmd.MarkFlagRequired("file")
	}
	rootCmd.AddCommand(runCmd, validateCmd, modelsCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitUsage)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configDir)
	if err != nil {
		return nil, &exitError{code: exitRejected, err: fmt.Errorf("failed to load config: %w", err)}
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	callback.Init()
	return cfg, nil
}

func setup(ctx context.Context) (*execution.Coordinator, *entity.ExecutionPlan, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	plan, err := readPlan(planPath)
	if err != nil {
		return nil, nil, &exitError{code: exitRejected, err: fmt.Errorf("failed to read plan: %w", err)}
	}

	catalog, err := wire.ProvideCatalog(ctx, cfg)
	if err != nil {
		return nil, nil, &exitError{code: exitRejected, err: fmt.Errorf("failed to build catalog: %w", err)}
	}
	coordinator, err := wire.ProvideCoordinator(catalog, cfg)
	if err != nil {
		return nil, nil, &exitError{code: exitRejected, err: err}
	}
	return coordinator, plan, nil
}

func readPlan(path string) (*entity.ExecutionPlan, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var plan entity.ExecutionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

func printModels(w io.Writer, models []execution.ModelEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tPROVIDER\tKIND\tTIMEOUT\tCOST/CALL")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\n", m.ModelID, m.ProviderID, m.Kind, m.Timeout, m.CostPerCall)
	}
	_ = tw.Flush()
}
