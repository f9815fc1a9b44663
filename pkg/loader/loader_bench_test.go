package loader

import (
	"fmt"
	"testing"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/testutil"
)

func benchLoader(b *testing.B, cfg config.AnalysisConfig) *Loader {
	b.Helper()
	hist, err := field.BuildHistoryCatalog(cfg)
	if err != nil {
		b.Fatal(err)
	}
	vol, err := field.BuildVolumeCatalog(cfg)
	if err != nil {
		b.Fatal(err)
	}
	l, err := New(cfg, hist, vol, nil)
	if err != nil {
		b.Fatal(err)
	}
	return l
}

func BenchmarkLoadHistory(b *testing.B) {
	cfg := testutil.Analysis(config.LargeDeformations, config.Dynamic, 3, true)
	l := benchLoader(b, cfg)
	state, _ := testutil.NewFakeRun(3, 0)
	hist := record.New[record.Iteration](l.history)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := l.LoadHistory(state, record.Iteration{InnerIter: i % 10, ExtIter: i}, hist); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoadVolume(b *testing.B) {
	for _, points := range []int{100, 10000} {
		b.Run(fmt.Sprintf("points=%d", points), func(b *testing.B) {
			cfg := testutil.Analysis(config.SmallDeformations, config.Dynamic, 3, false)
			l := benchLoader(b, cfg)
			state, geo := testutil.NewFakeRun(3, points)
			emit := func(record.VolumeSnapshot) error { return nil }

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := l.LoadVolume(state, geo, emit); err != nil {
					b.Fatal(err)
				}
			}
			b.ReportMetric(float64(points*b.N)/b.Elapsed().Seconds(), "points/s")
		})
	}
}
