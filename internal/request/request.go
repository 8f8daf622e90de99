// Package request loads template-build requests from HCL files. A request
// names the contrast, the input volumes (directly or via a directory to
// scan), and the scalar options the builder needs.
package request

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/nvolkov/anatref/internal/ctxlog"
	"github.com/nvolkov/anatref/internal/fsutil"
	"github.com/nvolkov/anatref/internal/template"
	"github.com/nvolkov/anatref/internal/xfm"
)

// Request is one template block from a request file.
//
//	template "t1w" {
//	  contrast     = "T1w"
//	  input_dir    = "./scans"
//	  omp_nthreads = 4
//	}
type Request struct {
	Name                   string   `hcl:"name,label"`
	Contrast               string   `hcl:"contrast"`
	Files                  []string `hcl:"files,optional"`
	InputDir               string   `hcl:"input_dir,optional"`
	OMPNThreads            int      `hcl:"omp_nthreads,optional"`
	Longitudinal           bool     `hcl:"longitudinal,optional"`
	Sloppy                 bool     `hcl:"sloppy,optional"`
	BSplineFittingDistance int      `hcl:"bspline_fitting_distance,optional"`
}

type requestFile struct {
	Templates []Request `hcl:"template,block"`
}

// Load parses the request file at path and resolves its input list. A file
// must hold exactly one template block, and the block must name its inputs
// either explicitly or through input_dir, not both.
func Load(ctx context.Context, path string) (*Request, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading request file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse request file %s: %w", path, diags)
	}

	var rf requestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &rf); diags.HasErrors() {
		return nil, fmt.Errorf("decode request file %s: %w", path, diags)
	}
	if len(rf.Templates) != 1 {
		return nil, fmt.Errorf("request file %s must hold exactly one template block, found %d", path, len(rf.Templates))
	}
	req := rf.Templates[0]

	switch {
	case len(req.Files) > 0 && req.InputDir != "":
		return nil, errors.New("request sets both files and input_dir; pick one")
	case len(req.Files) == 0 && req.InputDir == "":
		return nil, errors.New("request must set files or input_dir")
	case req.InputDir != "":
		files, err := fsutil.FindImages(req.InputDir)
		if err != nil {
			return nil, fmt.Errorf("scan input_dir: %w", err)
		}
		req.Files = files
	}

	if req.OMPNThreads == 0 {
		req.OMPNThreads = runtime.NumCPU()
	}

	logger.Debug("Request loaded.", "name", req.Name, "contrast", req.Contrast,
		"num_files", len(req.Files), "omp_nthreads", req.OMPNThreads)
	return &req, nil
}

// Options translates the request into builder options, attaching the
// resource locator the builder requires.
func (r *Request) Options(resources xfm.Locator) template.Options {
	return template.Options{
		Name:                   r.Name,
		Contrast:               r.Contrast,
		Files:                  r.Files,
		OMPNThreads:            r.OMPNThreads,
		Longitudinal:           r.Longitudinal,
		BSplineFittingDistance: r.BSplineFittingDistance,
		Sloppy:                 r.Sloppy,
		Resources:              resources,
	}
}
