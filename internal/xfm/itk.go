package xfm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	itkHeader        = "#Insight Transform File V1.0"
	itkTransformKind = "MatrixOffsetTransformBase_double_3_3"
)

// acceptedKinds are the ITK linear transform classes this package reads.
// They share the same 12-value parameter layout.
var acceptedKinds = map[string]bool{
	itkTransformKind:             true,
	"AffineTransform_double_3_3": true,
}

// ReadITK parses a single 3-D linear transform from an ITK text transform
// file. A non-zero rotation center (FixedParameters) is folded into the
// offset so the returned Affine is center-free: t' = t + c - A*c.
func ReadITK(path string) (Affine, error) {
	f, err := os.Open(path)
	if err != nil {
		return Affine{}, fmt.Errorf("open transform: %w", err)
	}
	defer f.Close()
	a, err := parseITK(f)
	if err != nil {
		return Affine{}, fmt.Errorf("parse transform %q: %w", path, err)
	}
	return a, nil
}

// WriteITK writes the transform to path in ITK text format with a zero
// rotation center.
func WriteITK(path string, a Affine) error {
	matrix, offset := a.Params()

	var sb strings.Builder
	sb.WriteString(itkHeader + "\n")
	sb.WriteString("#Transform 0\n")
	sb.WriteString("Transform: " + itkTransformKind + "\n")
	sb.WriteString("Parameters:")
	for _, v := range matrix {
		sb.WriteString(" " + formatFloat(v))
	}
	for _, v := range offset {
		sb.WriteString(" " + formatFloat(v))
	}
	sb.WriteString("\nFixedParameters: 0 0 0\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write transform: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseITK(r io.Reader) (Affine, error) {
	scanner := bufio.NewScanner(r)

	var (
		sawHeader bool
		kind      string
		params    []float64
		fixed     []float64
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#Insight Transform File"):
			sawHeader = true
		case strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "Transform:"):
			if kind != "" {
				return Affine{}, fmt.Errorf("multiple transforms in file, expected one")
			}
			kind = strings.TrimSpace(strings.TrimPrefix(line, "Transform:"))
		case strings.HasPrefix(line, "Parameters:"):
			vals, err := parseFloats(strings.TrimPrefix(line, "Parameters:"))
			if err != nil {
				return Affine{}, err
			}
			params = vals
		case strings.HasPrefix(line, "FixedParameters:"):
			vals, err := parseFloats(strings.TrimPrefix(line, "FixedParameters:"))
			if err != nil {
				return Affine{}, err
			}
			fixed = vals
		}
	}
	if err := scanner.Err(); err != nil {
		return Affine{}, err
	}

	if !sawHeader {
		return Affine{}, fmt.Errorf("missing ITK transform file header")
	}
	if !acceptedKinds[kind] {
		return Affine{}, fmt.Errorf("unsupported transform class %q", kind)
	}
	if len(params) != 12 {
		return Affine{}, fmt.Errorf("expected 12 parameters, got %d", len(params))
	}
	if len(fixed) != 0 && len(fixed) != 3 {
		return Affine{}, fmt.Errorf("expected 0 or 3 fixed parameters, got %d", len(fixed))
	}

	var matrix [9]float64
	copy(matrix[:], params[:9])
	var offset [3]float64
	copy(offset[:], params[9:])

	a := FromParams(matrix, offset)
	if len(fixed) == 3 && (fixed[0] != 0 || fixed[1] != 0 || fixed[2] != 0) {
		center := [3]float64{fixed[0], fixed[1], fixed[2]}
		rotated := FromParams(matrix, [3]float64{}).Apply(center)
		for i := 0; i < 3; i++ {
			offset[i] += center[i] - rotated[i]
		}
		a = FromParams(matrix, offset)
	}
	return a, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad numeric field %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}
