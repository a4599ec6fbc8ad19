// Package mcpadapter exposes the analysis pipeline as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/core/ports"
)

const (
	toolAnalyzeFile = "analyze_file"
	toolListTasks   = "list_tasks"

	defaultTask = "general-insights"
)

type Config struct {
	Name    string
	Version string
	// Credential is the model API key used for every tool call.
	Credential string
	// MaxFileBytes rejects larger files before reading them. Zero disables the check.
	MaxFileBytes int64
	Logger       *slog.Logger
}

type Server struct {
	analyzer ports.BatchAnalyzer
	catalog  ports.TaskCatalog
	cfg      Config
	logger   *slog.Logger
}

func NewServer(analyzer ports.BatchAnalyzer, catalog ports.TaskCatalog, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "file-insights"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Server{analyzer: analyzer, catalog: catalog, cfg: cfg, logger: logger}
}

// MCPServer builds the protocol server with both tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(s.cfg.Name, s.cfg.Version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(toolAnalyzeFile,
		mcp.WithDescription("Extract a local file and analyze it with a task preset. Returns the parsed result as JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute or working-directory relative file path")),
		mcp.WithString("task", mcp.Description("Task preset name, see list_tasks (default general-insights)")),
		mcp.WithString("model", mcp.Description("Model override")),
		mcp.WithString("categories", mcp.Description("Comma separated category labels replacing the preset's")),
		mcp.WithString("instructions", mcp.Description("Instructions replacing the preset's")),
	), s.handleAnalyzeFile)

	srv.AddTool(mcp.NewTool(toolListTasks,
		mcp.WithDescription("List the available task presets"),
	), s.handleListTasks)

	return srv
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleAnalyzeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(s.cfg.Credential) == "" {
		return mcp.NewToolResultError("no API key configured: set INSIGHTS_API_KEY or OPENAI_API_KEY"), nil
	}

	task, err := s.catalog.Resolve(req.GetString("task", defaultTask), ports.TaskOverrides{
		Model:        req.GetString("model", ""),
		Categories:   splitList(req.GetString("categories", "")),
		Instructions: req.GetString("instructions", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	file, err := s.readFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := s.analyzer.Analyze(ctx, []domain.UploadedFile{file}, task, s.cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", file.Filename, err)
	}
	if len(report.Outcomes) != 1 {
		return nil, fmt.Errorf("analyze %s: expected one outcome, got %d", file.Filename, len(report.Outcomes))
	}

	outcome := report.Outcomes[0]
	s.logger.Info("mcp.analyze_file.done",
		"filename", file.Filename,
		"task", task.Name,
		"succeeded", outcome.Succeeded(),
		"total_tokens", report.Stats.Tokens.Total,
	)
	if outcome.Error != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", outcome.Error.Kind, outcome.Error.Message)), nil
	}
	return jsonResult(outcome.Result)
}

func (s *Server) handleListTasks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.catalog.List())
}

func (s *Server) readFile(path string) (domain.UploadedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.UploadedFile{}, err
	}
	if info.IsDir() {
		return domain.UploadedFile{}, fmt.Errorf("%s is a directory", path)
	}
	if s.cfg.MaxFileBytes > 0 && info.Size() > s.cfg.MaxFileBytes {
		return domain.UploadedFile{}, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), s.cfg.MaxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UploadedFile{}, err
	}
	return domain.UploadedFile{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:        data,
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Join(errors.New("encode tool result"), err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
