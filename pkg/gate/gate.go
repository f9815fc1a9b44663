// Package gate decides, once per iteration, whether a screen header, a
// screen row and a history file row are produced. The functions are pure:
// every decision is recomputed from the iteration counters and configuration.
package gate

import (
	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/record"
)

// HeaderCadence is the number of write intervals between repeated headers in
// linear runs
const HeaderCadence = 40

// Decision is the outcome of the gate for one iteration
type Decision struct {
	EmitHeader   bool
	EmitRow      bool
	WriteHistory bool
}

// Decide evaluates every gate for one iteration
func Decide(analysis config.AnalysisConfig, it record.Iteration, freq config.Frequency) Decision {
	return Decision{
		EmitHeader:   ShouldEmitHeader(analysis, it, freq),
		EmitRow:      ShouldEmitRow(analysis, freq),
		WriteHistory: ShouldWriteHistoryFile(analysis, it, freq),
	}
}

// ShouldEmitHeader reports whether the screen header is printed this
// iteration.
//
// Nonlinear runs print it when the inner Newton loop restarts. Linear runs
// print it every HeaderCadence write intervals of the external iteration
// counter. Multizone runs print nothing unless zone convergence output is
// requested.
func ShouldEmitHeader(analysis config.AnalysisConfig, it record.Iteration, freq config.Frequency) bool {
	var emit bool
	if analysis.Nonlinear() {
		emit = it.InnerIter == 0
	} else {
		emit = it.ExtIter%(writeFrequency(freq)*HeaderCadence) == 0
	}
	if analysis.Multizone {
		emit = emit && freq.WriteZoneConvergence
	}
	return emit
}

// ShouldEmitRow reports whether a screen row is printed this iteration
func ShouldEmitRow(analysis config.AnalysisConfig, freq config.Frequency) bool {
	if analysis.Multizone {
		return freq.WriteZoneConvergence
	}
	return true
}

// ShouldWriteHistoryFile reports whether the history file gets a row. Every
// iteration is recorded.
func ShouldWriteHistoryFile(config.AnalysisConfig, record.Iteration, config.Frequency) bool {
	return true
}

// writeFrequency treats an unset or non-positive frequency as every iteration
func writeFrequency(freq config.Frequency) int {
	if freq.WriteFrequency <= 0 {
		return 1
	}
	return freq.WriteFrequency
}
