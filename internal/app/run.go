package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvolkov/anatref/internal/ctxlog"
	"github.com/nvolkov/anatref/internal/request"
	"github.com/nvolkov/anatref/internal/template"
	"github.com/nvolkov/anatref/internal/xfm"
)

// Run executes the main application logic: load the request, build and
// validate the template pipeline, write its DOT and JSON exports, and
// print a summary. Executing the pipeline against real imaging tools is
// the embedding pipeline's job; this tool constructs and inspects.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	req, err := request.Load(ctx, a.config.RequestPath)
	if err != nil {
		return fmt.Errorf("failed to load request: %w", err)
	}

	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	locator := xfm.NewCacheLocator(filepath.Join(a.config.OutputDir, "resources"))

	pipe, err := template.Build(ctx, req.Options(locator))
	if err != nil {
		return fmt.Errorf("failed to build template pipeline: %w", err)
	}
	a.logger.Info("Template pipeline built and validated.",
		"name", pipe.Name(), "nodes", len(pipe.Nodes()), "edges", len(pipe.Edges()))

	dotPath := filepath.Join(a.config.OutputDir, pipe.Name()+".dot")
	if err := os.WriteFile(dotPath, []byte(pipe.DOT()), 0644); err != nil {
		return fmt.Errorf("write DOT export: %w", err)
	}

	raw, err := pipe.ExportJSON()
	if err != nil {
		return fmt.Errorf("export pipeline: %w", err)
	}
	jsonPath := filepath.Join(a.config.OutputDir, pipe.Name()+".json")
	if err := os.WriteFile(jsonPath, raw, 0644); err != nil {
		return fmt.Errorf("write JSON export: %w", err)
	}
	a.logger.Debug("Pipeline exports written.", "dot", dotPath, "json", jsonPath)

	fmt.Fprintf(a.outW, "Pipeline %q: %d inputs (%s), %d nodes, %d edges\n",
		pipe.Name(), len(req.Files), req.Contrast, len(pipe.Nodes()), len(pipe.Edges()))
	if desc := pipe.Description(); desc != "" {
		fmt.Fprintln(a.outW, desc)
	}
	fmt.Fprintf(a.outW, "Exports written to %s\n", a.config.OutputDir)

	a.logger.Debug("App.Run method finished.")
	return nil
}
