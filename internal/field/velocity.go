package field

import (
	"errors"
	"fmt"

	"github.com/roach88/advect/internal/ir"
)

// Velocity field kinds.
const (
	KindUniform  = "uniform"
	KindRotation = "rotation"
)

// Field is an analytic, time-independent velocity field.
type Field struct {
	Kind string `json:"kind"`

	// Vector is the constant velocity of a uniform field.
	Vector ir.Vec3 `json:"vector"`

	// Center, Axis and Omega describe solid-body rotation about the line
	// through Center along Axis, with angular speed Omega.
	Center ir.Vec3 `json:"center"`
	Axis   ir.Vec3 `json:"axis"`
	Omega  float64 `json:"omega"`
}

// Validate checks the parameters of the field.
func (f Field) Validate() error {
	switch f.Kind {
	case KindUniform:
		if !f.Vector.IsFinite() {
			return errors.New("uniform field vector must be finite")
		}
	case KindRotation:
		if !f.Center.IsFinite() || !f.Axis.IsFinite() {
			return errors.New("rotation center and axis must be finite")
		}
		if f.Axis.Norm() == 0 {
			return errors.New("rotation axis must be non-zero")
		}
	default:
		return fmt.Errorf("unknown field kind %q", f.Kind)
	}
	return nil
}

// Velocity returns the field value at p.
func (f Field) Velocity(p ir.Vec3) ir.Vec3 {
	switch f.Kind {
	case KindUniform:
		return f.Vector
	case KindRotation:
		axis := f.Axis.Scale(1 / f.Axis.Norm())
		return cross(axis, p.Sub(f.Center)).Scale(f.Omega)
	}
	return ir.Vec3{}
}

func cross(a, b ir.Vec3) ir.Vec3 {
	return ir.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
