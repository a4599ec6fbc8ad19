package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillkom/file-insights/internal/bootstrap"
	"github.com/kirillkom/file-insights/internal/config"
	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/core/ports"
	"github.com/kirillkom/file-insights/internal/infrastructure/export"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
	formatXLSX  = "xlsx"
	formatText  = "txt"
)

var outputFormats = []string{formatTable, formatJSON, formatCSV, formatXLSX, formatText}

type analyzeFlags struct {
	task         string
	model        string
	categories   []string
	criteria     []string
	instructions string
	maxTokens    int
	format       string
	out          string
}

func analyzeCmd() *cobra.Command {
	var flags analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [files or directories...]",
		Short: "Analyze files with a task preset",
		Example: `  insights analyze --task categorize-mail inbox/*.msg
  insights analyze --task quality-review --format xlsx --out review.xlsx report.docx
  insights analyze --task custom --instructions "List all dates" notes.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.task, "task", "t", "general-insights", "task preset (see 'insights tasks')")
	cmd.Flags().StringVar(&flags.model, "model", "", "model override")
	cmd.Flags().StringSliceVar(&flags.categories, "categories", nil, "category labels replacing the preset's")
	cmd.Flags().StringSliceVar(&flags.criteria, "criteria", nil, "criteria replacing the preset's")
	cmd.Flags().StringVar(&flags.instructions, "instructions", "", "instructions replacing the preset's")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "response token limit override")
	cmd.Flags().StringVarP(&flags.format, "format", "f", formatTable, "output format: "+strings.Join(outputFormats, ", "))
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "write output to this file instead of stdout")

	cmd.Flags().String("api-key", "", "model API key (default $INSIGHTS_API_KEY or $OPENAI_API_KEY)")
	cmd.Flags().String("base-url", "", "chat-completion API base URL")
	cmd.Flags().Duration("timeout", 0, "per-call inference timeout")
	cmd.Flags().Int("retries", 0, "attempts per inference call")
	cmd.Flags().String("tasks-file", "", "task catalog YAML replacing the built-in presets")
	_ = viper.BindPFlag("api_key", cmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("base_url", cmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("retries", cmd.Flags().Lookup("retries"))
	_ = viper.BindPFlag("tasks_file", cmd.Flags().Lookup("tasks-file"))

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, flags analyzeFlags) error {
	ctx := cmd.Context()
	if !slices.Contains(outputFormats, flags.format) {
		return fmt.Errorf("unknown format %q, want one of %s", flags.format, strings.Join(outputFormats, ", "))
	}
	if flags.format == formatXLSX && flags.out == "" {
		return errors.New("xlsx output requires --out")
	}
	credential := strings.TrimSpace(viper.GetString("api_key"))
	if credential == "" {
		return errors.New("API key is required: pass --api-key or set INSIGHTS_API_KEY or OPENAI_API_KEY")
	}

	files, err := readInputFiles(args)
	if err != nil {
		return err
	}

	cfg := cliConfig()
	bar := newProgressBar(cmd.ErrOrStderr(), len(files))
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:  serviceName,
		Logger:   slog.Default(),
		Observer: progressObserver{bar: bar},
	})
	if err != nil {
		return err
	}
	defer app.Close()

	task, err := app.Catalog.Resolve(flags.task, ports.TaskOverrides{
		Model:        flags.model,
		Categories:   flags.categories,
		Criteria:     flags.criteria,
		Instructions: flags.instructions,
		MaxTokens:    flags.maxTokens,
	})
	if err != nil {
		return err
	}

	report, err := app.Analyzer.Analyze(ctx, files, task, credential)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if flags.out != "" {
		f, err := os.Create(flags.out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeReport(w, flags.format, report); err != nil {
		return err
	}
	if flags.out != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("wrote "+flags.out))
	}
	return nil
}

// cliConfig starts from the environment and applies flag and config-file overrides.
func cliConfig() config.Config {
	cfg := config.Load()
	cfg.LogLevel = viper.GetString("log_level")
	cfg.LogFormat = viper.GetString("log_format")
	cfg.TasksFile = tasksFile()
	if v := viper.GetString("base_url"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if d := viper.GetDuration("timeout"); d > 0 {
		cfg.InferenceTimeout = d
	}
	if n := viper.GetInt("retries"); n > 0 {
		cfg.RetryMaxAttempts = n
	}
	return cfg
}

func tasksFile() string {
	if v := viper.GetString("tasks_file"); v != "" {
		return v
	}
	return os.Getenv("TASKS_FILE")
}

func writeReport(w io.Writer, format string, report domain.BatchReport) error {
	switch format {
	case formatJSON:
		return writeJSON(w, report)
	case formatCSV:
		return export.WriteCSV(w, report)
	case formatXLSX:
		return export.WriteXLSX(w, report)
	case formatText:
		return export.WriteInsightsText(w, report)
	default:
		return renderReport(w, report)
	}
}

// readInputFiles loads every path; directories contribute their regular files, sorted by name.
func readInputFiles(paths []string) ([]domain.UploadedFile, error) {
	var files []domain.UploadedFile
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			file, err := readInputFile(path)
			if err != nil {
				return nil, err
			}
			files = append(files, file)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			file, err := readInputFile(filepath.Join(path, entry.Name()))
			if err != nil {
				return nil, err
			}
			files = append(files, file)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	return files, nil
}

func readInputFile(path string) (domain.UploadedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return domain.UploadedFile{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:        data,
	}, nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

type progressObserver struct {
	bar *progressbar.ProgressBar
}

func (o progressObserver) ObserveFile(record domain.RunRecord) {
	if o.bar == nil {
		return
	}
	o.bar.Describe(record.Filename)
	_ = o.bar.Add(1)
}
