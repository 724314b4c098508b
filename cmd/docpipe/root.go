package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voice-answers-go/internal/app"
	"voice-answers-go/internal/config"
	"voice-answers-go/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "Validate recorded answers and assemble summary documents",
	Long: "docpipe discovers recorded answers per question, transcribes them, screens\n" +
		"them for relevance and writes a summary document for every question that\n" +
		"reached a strict on-topic majority.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the docpipe version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), app.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DOCPIPE_CONFIG"), "YAML config file (optional)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = app.Version
}

// setup loads .env and the config file and builds the stage graph.
func setup(ctx context.Context) (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithOptions(logger.Options{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		Output:      os.Stderr,
	})
	return app.New(ctx, cfg, log)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
