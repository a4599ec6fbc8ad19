package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/infrastructure/taskcatalog"
)

func tasksCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List task presets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.List())
			}
			return renderTasks(cmd.OutOrStdout(), catalog.List())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print presets as JSON")
	return cmd
}

func loadCatalog() (*taskcatalog.Catalog, error) {
	if path := tasksFile(); path != "" {
		return taskcatalog.Load(path)
	}
	return taskcatalog.Default()
}

func renderTasks(w io.Writer, tasks []domain.TaskDescriptor) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
		headerStyle.Render("TASK"),
		headerStyle.Render("KIND"),
		headerStyle.Render("MODEL"),
		headerStyle.Render("LABELS"))
	for _, task := range tasks {
		labels := task.CategoryLabels()
		if task.Kind == domain.TaskQuality {
			labels = task.CriterionLabels()
		}
		summary := strings.Join(labels, ", ")
		if summary == "" {
			summary = subtleStyle.Render("-")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", task.Name, task.Kind, task.Model, summary)
	}
	return tw.Flush()
}
