package field

import (
	"github.com/ajitpratap0/feaout/pkg/config"
)

// History field IDs
const (
	TimeIter  ID = "TIME_ITER"
	OuterIter ID = "OUTER_ITER"
	InnerIter ID = "INNER_ITER"

	RMSDispX ID = "RMS_DISP_X"
	RMSDispY ID = "RMS_DISP_Y"
	RMSDispZ ID = "RMS_DISP_Z"

	RMSUTol ID = "RMS_UTOL"
	RMSRTol ID = "RMS_RTOL"
	RMSETol ID = "RMS_ETOL"

	BGSDispX ID = "BGS_DISP_X"
	BGSDispY ID = "BGS_DISP_Y"
	BGSDispZ ID = "BGS_DISP_Z"

	VonMisesSum   ID = "VMS"
	LoadIncrement ID = "LOAD_INCREMENT"
	LoadRamp      ID = "LOAD_RAMP"
)

// History group tags
const (
	GroupIter          = "ITER"
	GroupRMSRes        = "RMS_RES"
	GroupBGSRes        = "BGS_RES"
	GroupVMS           = "VMS"
	GroupLoadIncrement = "LOAD_INCREMENT"
	GroupLoadRamp      = "LOAD_RAMP"
)

// RMSDisp, RMSTol and BGSDisp are indexed by solver component, so the
// loader and the catalog share one definition of "component i".
var (
	RMSDisp = [3]ID{RMSDispX, RMSDispY, RMSDispZ}
	RMSTol  = [3]ID{RMSUTol, RMSRTol, RMSETol}
	BGSDisp = [3]ID{BGSDispX, BGSDispY, BGSDispZ}
)

var (
	rmsDispLabels = [3]string{"rms[DispX]", "rms[DispY]", "rms[DispZ]"}
	rmsTolLabels  = [3]string{"rms[U]", "rms[R]", "rms[E]"}
	bgsDispLabels = [3]string{"bgs[DispX]", "bgs[DispY]", "bgs[DispZ]"}
)

// BuildHistoryCatalog registers the history fields active for cfg.
//
// Iteration counters and the summary fields are always present. The residual
// block is either the per-axis displacement residuals (small deformations) or
// the U/R/E tolerances (large deformations), never both. Multizone runs add
// the per-axis coupling residuals. Out-of-plane entries exist only in 3-D.
func BuildHistoryCatalog(cfg config.AnalysisConfig) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := ResidualComponents(cfg)

	b := newBuilder(History, 16)

	b.value(TimeIter, "Time_Iter", FormatInteger, GroupIter)
	b.value(OuterIter, "Outer_Iter", FormatInteger, GroupIter)
	b.value(InnerIter, "Inner_Iter", FormatInteger, GroupIter)

	switch cfg.GeometryMode {
	case config.SmallDeformations:
		for i := 0; i < n; i++ {
			b.residual(RMSDisp[i], rmsDispLabels[i], GroupRMSRes)
		}
	case config.LargeDeformations:
		for i := 0; i < n; i++ {
			b.residual(RMSTol[i], rmsTolLabels[i], GroupRMSRes)
		}
	}

	if cfg.Multizone {
		for i := 0; i < n; i++ {
			b.residual(BGSDisp[i], bgsDispLabels[i], GroupBGSRes)
		}
	}

	b.value(VonMisesSum, "VonMises", FormatScientific, GroupVMS)
	b.value(LoadIncrement, "Load_Increment", FormatFixed, GroupLoadIncrement)
	b.value(LoadRamp, "Load_Ramp", FormatFixed, GroupLoadRamp)

	return b.build()
}

// ResidualComponents is the number of residual components reported per block.
// It is the spatial dimension for both variants: the E tolerance of the
// nonlinear solve is only produced in 3-D.
func ResidualComponents(cfg config.AnalysisConfig) int {
	if cfg.ThreeD() {
		return 3
	}
	return 2
}
