package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillkom/file-insights/internal/observability/logging"
)

const serviceName = "cli"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "insights",
		Short: "Run files through an LLM task and report the results",
		Long: `insights extracts text from local files (txt, md, csv, json, pdf, docx, xlsx, msg),
sends each one to a chat-completion model with a task preset and prints the parsed results.

The API key is read from --api-key, INSIGHTS_API_KEY or OPENAI_API_KEY, in that order.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/insights/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(tasksCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/insights")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("insights")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("INSIGHTS")
	viper.AutomaticEnv()
	_ = viper.BindEnv("api_key", "INSIGHTS_API_KEY", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	logger := logging.New(logging.Options{
		Service: serviceName,
		Level:   viper.GetString("log_level"),
		Format:  viper.GetString("log_format"),
		Output:  os.Stderr,
	})
	slog.SetDefault(logger)
	return nil
}
