package config_test

import (
	"fmt"

	"github.com/ajitpratap0/feaout/pkg/config"
)

// ExampleNewDefault demonstrates the default configuration.
func ExampleNewDefault() {
	cfg := config.NewDefault()

	fmt.Printf("Geometry: %s\n", cfg.Analysis.GeometryMode)
	fmt.Printf("Dimension: %d\n", cfg.Analysis.SpatialDim)
	fmt.Printf("Write frequency: %d\n", cfg.Output.WriteFrequency)
	fmt.Printf("History file: %s\n", cfg.Output.HistoryFile)

	// Output:
	// Geometry: SMALL_DEFORMATIONS
	// Dimension: 2
	// Write frequency: 1
	// History file: history.csv
}

// ExampleAnalysisConfig_Validate shows the configuration error for an
// unknown geometry mode.
func ExampleAnalysisConfig_Validate() {
	a := config.AnalysisConfig{
		GeometryMode: "MEDIUM_DEFORMATIONS",
		TimeMode:     config.Static,
		SpatialDim:   2,
	}
	fmt.Println(a.Validate())

	// Output:
	// config: unrecognized geometry mode "MEDIUM_DEFORMATIONS"
}
