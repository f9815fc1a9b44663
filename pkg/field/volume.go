package field

import (
	"github.com/ajitpratap0/feaout/pkg/config"
)

// Volume field IDs
const (
	CoordX ID = "COORD-X"
	CoordY ID = "COORD-Y"
	CoordZ ID = "COORD-Z"

	DisplacementX ID = "DISPLACEMENT-X"
	DisplacementY ID = "DISPLACEMENT-Y"
	DisplacementZ ID = "DISPLACEMENT-Z"

	VelocityX ID = "VELOCITY-X"
	VelocityY ID = "VELOCITY-Y"
	VelocityZ ID = "VELOCITY-Z"

	AccelerationX ID = "ACCELERATION-X"
	AccelerationY ID = "ACCELERATION-Y"
	AccelerationZ ID = "ACCELERATION-Z"

	StressXX ID = "STRESS-XX"
	StressYY ID = "STRESS-YY"
	StressXY ID = "STRESS-XY"
	StressZZ ID = "STRESS-ZZ"
	StressXZ ID = "STRESS-XZ"
	StressYZ ID = "STRESS-YZ"

	VonMisesStress ID = "VON_MISES_STRESS"
)

// Volume group tags
const (
	GroupCoordinates  = "COORDINATES"
	GroupSolution     = "SOLUTION"
	GroupVelocity     = "VELOCITY"
	GroupAcceleration = "ACCELERATION"
	GroupStress       = "STRESS"
)

// Per-axis volume IDs, indexed by component.
var (
	Coord        = [3]ID{CoordX, CoordY, CoordZ}
	Displacement = [3]ID{DisplacementX, DisplacementY, DisplacementZ}
	Velocity     = [3]ID{VelocityX, VelocityY, VelocityZ}
	Acceleration = [3]ID{AccelerationX, AccelerationY, AccelerationZ}
)

// Stress holds the stress-tensor IDs in the solver's component layout:
// in-plane XX, YY, XY first, then out-of-plane ZZ, XZ, YZ.
var Stress = [6]ID{StressXX, StressYY, StressXY, StressZZ, StressXZ, StressYZ}

var (
	coordLabels        = [3]string{"x", "y", "z"}
	displacementLabels = [3]string{"Displacement_x", "Displacement_y", "Displacement_z"}
	velocityLabels     = [3]string{"Velocity_x", "Velocity_y", "Velocity_z"}
	accelerationLabels = [3]string{"Acceleration_x", "Acceleration_y", "Acceleration_z"}
	stressLabels       = [6]string{"Sxx", "Syy", "Sxy", "Szz", "Sxz", "Syz"}
)

// BuildVolumeCatalog registers the per-point fields active for cfg.
//
// Coordinates, displacements, the in-plane stresses and the von Mises stress
// are always present. Velocity and acceleration exist only for dynamic
// analyses, and out-of-plane components only in 3-D.
func BuildVolumeCatalog(cfg config.AnalysisConfig) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nDim := cfg.SpatialDim

	b := newBuilder(Volume, 20)

	for i := 0; i < nDim; i++ {
		b.value(Coord[i], coordLabels[i], FormatScientific, GroupCoordinates)
	}
	for i := 0; i < nDim; i++ {
		b.value(Displacement[i], displacementLabels[i], FormatScientific, GroupSolution)
	}

	if cfg.Dynamic() {
		for i := 0; i < nDim; i++ {
			b.value(Velocity[i], velocityLabels[i], FormatScientific, GroupVelocity)
		}
		for i := 0; i < nDim; i++ {
			b.value(Acceleration[i], accelerationLabels[i], FormatScientific, GroupAcceleration)
		}
	}

	for i := 0; i < StressComponents(cfg); i++ {
		b.value(Stress[i], stressLabels[i], FormatScientific, GroupStress)
	}
	b.value(VonMisesStress, "Von_Mises_Stress", FormatScientific, GroupStress)

	return b.build()
}

// StressComponents is the length of the stress vector for cfg: 3 in-plane
// terms in 2-D, 6 terms in 3-D.
func StressComponents(cfg config.AnalysisConfig) int {
	if cfg.ThreeD() {
		return 6
	}
	return 3
}
