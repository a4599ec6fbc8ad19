package taskcatalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/core/ports"
)

func TestDefaultCatalogPresets(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	names := make([]string, 0)
	for _, task := range catalog.List() {
		names = append(names, task.Name)
		require.NoError(t, task.Validate(), task.Name)
	}
	assert.Equal(t, []string{"categorize-mail", "quality-review", "general-insights", "data-analysis", "document-summary", "custom"}, names)
}

func TestResolveCategorizeMail(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	task, err := catalog.Resolve("Categorize-Mail", ports.TaskOverrides{})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCategorize, task.Kind)
	assert.Equal(t, "gpt-3.5-turbo", task.Model)
	assert.Equal(t, 50, task.MaxTokens)
	assert.Equal(t, 0.1, task.Temperature)
	assert.Equal(t, 12000, task.ContentChars)
	assert.Equal(t, []string{"Reporting anfragen", "Steuer anfragen"}, task.CategoryLabels())
}

func TestResolveAppliesOverrides(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	task, err := catalog.Resolve("categorize-mail", ports.TaskOverrides{
		Model:      "gpt-4o-mini",
		Categories: []string{" Steuer anfragen ", "Personal", ""},
		MaxTokens:  80,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", task.Model)
	assert.Equal(t, 80, task.MaxTokens)
	assert.Equal(t, 48000, task.ContentChars)
	require.Len(t, task.Categories, 2)
	assert.Equal(t, "Steuer anfragen", task.Categories[0].Label)
	assert.NotEmpty(t, task.Categories[0].Description)
	assert.Equal(t, domain.Category{Label: "Personal"}, task.Categories[1])

	again, err := catalog.Resolve("categorize-mail", ports.TaskOverrides{})
	require.NoError(t, err)
	assert.Len(t, again.Categories, 2)
	assert.Equal(t, "Reporting anfragen", again.Categories[0].Label, "overrides must not leak into the preset")
}

func TestResolveUnknownModelUsesBuilderDefault(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	task, err := catalog.Resolve("quality-review", ports.TaskOverrides{Model: "local-llama"})
	require.NoError(t, err)
	assert.Zero(t, task.ContentChars)
	assert.Len(t, task.Criteria, 5)
}

func TestResolveCustomRequiresInstructions(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	_, err = catalog.Resolve("custom", ports.TaskOverrides{})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	task, err := catalog.Resolve("custom", ports.TaskOverrides{Instructions: "List all deadlines."})
	require.NoError(t, err)
	assert.Equal(t, "List all deadlines.", task.Instructions)
	assert.Equal(t, "gpt-4o", task.Model)
}

func TestResolveUnknownTask(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	_, err = catalog.Resolve("translate", ports.TaskOverrides{})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":         "tasks: []\n",
		"unknown field": "tasks:\n  - name: x\n    kind: insights\n    model: m\n    max_tokens: 1\n    colour: red\n",
		"duplicate":     "tasks:\n  - {name: x, kind: insights, model: m, max_tokens: 1}\n  - {name: X, kind: insights, model: m, max_tokens: 1}\n",
		"no categories": "tasks:\n  - {name: x, kind: categorize, model: m, max_tokens: 1}\n",
		"no model":      "tasks:\n  - {name: x, kind: insights, max_tokens: 1}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_model: gpt-4o-mini
tasks:
  - name: triage
    kind: categorize
    max_tokens: 20
    categories:
      - label: Bug
      - label: Feature
`), 0o600))

	catalog, err := Load(path)
	require.NoError(t, err)
	task, err := catalog.Resolve("triage", ports.TaskOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", task.Model)
	assert.Equal(t, []string{"Bug", "Feature"}, task.CategoryLabels())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
