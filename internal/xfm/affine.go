// Package xfm implements rigid and affine spatial transforms for 3-D
// volumes: 4x4 homogeneous matrix algebra, the ITK text transform file
// format, and access to the bundled identity transform resource.
package xfm

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Affine is a 4x4 homogeneous spatial transform. The zero value is not
// usable; construct instances with Identity, FromParams, Translation or
// Scaling. Operations never mutate their receiver.
type Affine struct {
	m *mat.Dense
}

// Identity returns the identity transform.
func Identity() Affine {
	return FromParams([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})
}

// Translation returns a pure translation by (x, y, z).
func Translation(x, y, z float64) Affine {
	return FromParams([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{x, y, z})
}

// Scaling returns a uniform scaling about the origin. A zero factor yields
// a singular transform; Invert reports that case.
func Scaling(s float64) Affine {
	return FromParams([9]float64{s, 0, 0, 0, s, 0, 0, 0, s}, [3]float64{})
}

// FromParams builds a transform from a row-major 3x3 matrix and an offset
// vector, the parameter layout used by ITK affine transforms.
func FromParams(matrix [9]float64, offset [3]float64) Affine {
	m := mat.NewDense(4, 4, []float64{
		matrix[0], matrix[1], matrix[2], offset[0],
		matrix[3], matrix[4], matrix[5], offset[1],
		matrix[6], matrix[7], matrix[8], offset[2],
		0, 0, 0, 1,
	})
	return Affine{m: m}
}

// Params returns the row-major 3x3 matrix block and the offset vector.
func (a Affine) Params() (matrix [9]float64, offset [3]float64) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			matrix[i*3+j] = a.m.At(i, j)
		}
		offset[i] = a.m.At(i, 3)
	}
	return matrix, offset
}

// Compose returns the transform that applies other first, then a.
func (a Affine) Compose(other Affine) Affine {
	var out mat.Dense
	out.Mul(a.m, other.m)
	return Affine{m: &out}
}

// Invert returns the inverse transform. Singular transforms are rejected.
func (a Affine) Invert() (Affine, error) {
	var out mat.Dense
	if err := out.Inverse(a.m); err != nil {
		return Affine{}, fmt.Errorf("transform is not invertible: %w", err)
	}
	return Affine{m: &out}, nil
}

// Apply maps a point through the transform.
func (a Affine) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = a.m.At(i, 0)*p[0] + a.m.At(i, 1)*p[1] + a.m.At(i, 2)*p[2] + a.m.At(i, 3)
	}
	return out
}

// EqualApprox reports whether two transforms match within tol, element-wise.
func (a Affine) EqualApprox(b Affine, tol float64) bool {
	return mat.EqualApprox(a.m, b.m, tol)
}

// ComposeAndInvert collapses an ordered chain of transforms (first element
// applied first) into one transform and returns its inverse, mapping points
// from the chain's output space back to its input space.
func ComposeAndInvert(chain ...Affine) (Affine, error) {
	if len(chain) == 0 {
		return Affine{}, errors.New("empty transform chain")
	}
	combined := chain[0]
	for _, t := range chain[1:] {
		combined = t.Compose(combined)
	}
	return combined.Invert()
}
