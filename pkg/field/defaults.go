package field

import (
	"github.com/ajitpratap0/feaout/pkg/config"
)

// DefaultConvergenceField is monitored when the user does not name one
const DefaultConvergenceField = RMSDispX

// DefaultScreenFields returns the screen columns used when none are requested.
//
// This is caller-side policy layered on top of the catalog: TIME_ITER and
// OUTER_ITER are always registered, but only shown by default for dynamic and
// multizone runs respectively. Residuals are taken from the active variant
// and limited to what catalog actually registered.
func DefaultScreenFields(cfg config.AnalysisConfig, catalog *Catalog) []ID {
	var ids []ID
	if cfg.Dynamic() {
		ids = append(ids, TimeIter)
	}
	if cfg.Multizone {
		ids = append(ids, OuterIter)
	}
	ids = append(ids, InnerIter)

	residuals := RMSDisp
	if cfg.Nonlinear() {
		residuals = RMSTol
	}
	for _, id := range residuals {
		if catalog.Has(id) {
			ids = append(ids, id)
		}
	}

	return append(ids, VonMisesSum, LoadIncrement, LoadRamp)
}

// DefaultHistoryGroups returns the groups written to the history file by default
func DefaultHistoryGroups() []string {
	return []string{GroupIter, GroupRMSRes}
}

// DefaultVolumeGroups returns the groups written to volume datasets by default
func DefaultVolumeGroups() []string {
	return []string{GroupCoordinates, GroupSolution, GroupStress}
}

// IDStrings converts ids to plain strings, e.g. for Select
func IDStrings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
