// Package solver declares the read-only view of the structural solver and the
// mesh that the reporting subsystem pulls values from.
//
// The reporting code never mutates solver state. Implementations are free to
// compute values lazily; every accessor is called at most once per field per
// iteration (history) or per point (volume).
package solver

// State is the aggregate solver state read once per iteration
type State interface {
	// ResRMS returns the root-mean-square displacement residual of component i
	ResRMS(i int) float64
	// ResFEM returns the convergence tolerance i of the nonlinear solve (U, R, E)
	ResFEM(i int) float64
	// ResBGS returns the block Gauss-Seidel coupling residual of component i
	ResBGS(i int) float64
	// TotalVonMises returns the accumulated von Mises stress measure
	TotalVonMises() float64
	// LoadIncrement returns the current load increment
	LoadIncrement() float64
	// ForceCoeff returns the current load ramp coefficient
	ForceCoeff() float64
	// Node returns the solution state at point p
	Node(p int) Node
}

// Node is the per-point solution state
type Node interface {
	Solution(i int) float64
	Velocity(i int) float64
	Acceleration(i int) float64
	// Stress returns the stress vector laid out as XX, YY, XY, ZZ, XZ, YZ.
	// 2-D nodes return the first three terms only.
	Stress() []float64
	VonMises() float64
}

// Geometry is the mesh provider
type Geometry interface {
	NDim() int
	NPoints() int
	// Coord returns coordinate i of point p
	Coord(p, i int) float64
}
