// Package testutil provides the test harness for pipeline execution: fake
// imaging handlers that stand in for the external tools (operating on plain
// files instead of volumes), and helpers for assembling registries and
// inputs in tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvolkov/anatref/internal/registry"
	"github.com/nvolkov/anatref/internal/report"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/nvolkov/anatref/internal/xfm"
	"github.com/zclconf/go-cty/cty"
)

// FakeImaging registers stand-ins for the imaging tool steps. Each handler
// reproduces the step's data flow (files in, files out, order preserved)
// without any numerics, so executor and integration tests can run full
// pipelines on plain text files.
type FakeImaging struct{}

// Register implements registry.Module.
func (m *FakeImaging) Register(r *registry.Registry) {
	r.Register(steps.KindTemplateDimensions, onTemplateDimensions)
	r.Register(steps.KindConform, copyStep("in_file", "out_file", "conformed"))
	r.Register(steps.KindIntensityClip, copyStep("in_file", "out_file", "clipped"))
	r.Register(steps.KindBiasFieldCorrect, copyStep("input_image", "output_image", "corrected"))
	r.Register(steps.KindRobustTemplate, onRobustTemplate)
	r.Register(steps.KindReorient, copyStep("in_file", "out_file", "ras"))
}

// onTemplateDimensions accepts every input that exists on disk, reports a
// fixed target geometry, and writes the conformation report artifact.
func onTemplateDimensions(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
	rep := &report.Conformation{
		TargetZooms: [3]float64{1, 1, 1},
		TargetShape: [3]int{192, 229, 193},
	}

	var valid []cty.Value
	for _, v := range call.Inputs["anat_list"].AsValueSlice() {
		path := v.AsString()
		geom := report.InputGeometry{
			Path:        path,
			Zooms:       rep.TargetZooms,
			Shape:       rep.TargetShape,
			Orientation: "RAS",
		}
		rep.Inputs = append(rep.Inputs, geom)
		if _, err := os.Stat(path); err != nil {
			rep.Discarded = append(rep.Discarded, path)
			continue
		}
		valid = append(valid, v)
	}

	reportPath := filepath.Join(call.WorkDir, "conformation.yaml")
	if err := rep.Write(reportPath); err != nil {
		return nil, err
	}

	validList := cty.ListValEmpty(cty.String)
	if len(valid) > 0 {
		validList = cty.ListVal(valid)
	}
	return map[string]cty.Value{
		"valid_list":   validList,
		"target_zooms": numberList(rep.TargetZooms[0], rep.TargetZooms[1], rep.TargetZooms[2]),
		"target_shape": numberList(float64(rep.TargetShape[0]), float64(rep.TargetShape[1]), float64(rep.TargetShape[2])),
		"out_report":   cty.StringVal(reportPath),
	}, nil
}

// onRobustTemplate concatenates its inputs into the averaged output file
// and emits one translation transform per input, so downstream transform
// composition has distinguishable, verifiable inputs.
func onRobustTemplate(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
	inFiles := call.Inputs["in_files"].AsValueSlice()

	var merged []byte
	xfms := make([]cty.Value, len(inFiles))
	for i, v := range inFiles {
		content, err := os.ReadFile(v.AsString())
		if err != nil {
			return nil, err
		}
		merged = append(merged, content...)

		path := filepath.Join(call.WorkDir, fmt.Sprintf("tp%d.txt", i))
		if err := xfm.WriteITK(path, xfm.Translation(float64(i+1), 0, 0)); err != nil {
			return nil, err
		}
		xfms[i] = cty.StringVal(path)
	}

	outFile := filepath.Join(call.WorkDir, call.Config["out_file"].AsString())
	if err := os.WriteFile(outFile, merged, 0644); err != nil {
		return nil, err
	}
	return map[string]cty.Value{
		"out_file":          cty.StringVal(outFile),
		"transform_outputs": cty.ListVal(xfms),
	}, nil
}

// copyStep returns a handler that copies its input file into the work
// directory under a step-specific prefix, standing in for any per-image
// tool invocation.
func copyStep(inPort, outPort, prefix string) registry.Handler {
	return func(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
		src := call.Inputs[inPort].AsString()
		content, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s_%s", prefix, filepath.Base(src))
		if call.Index >= 0 {
			name = fmt.Sprintf("%s_%04d_%s", prefix, call.Index, filepath.Base(src))
		}
		dst := filepath.Join(call.WorkDir, name)
		if err := os.WriteFile(dst, content, 0644); err != nil {
			return nil, err
		}
		return map[string]cty.Value{outPort: cty.StringVal(dst)}, nil
	}
}

func numberList(vals ...float64) cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberFloatVal(v)
	}
	return cty.ListVal(out)
}
