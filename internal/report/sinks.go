package report

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/sink"
	"github.com/ajitpratap0/feaout/pkg/sink/arrow"
	"github.com/ajitpratap0/feaout/pkg/sink/avro"
	"github.com/ajitpratap0/feaout/pkg/sink/csv"
	"github.com/ajitpratap0/feaout/pkg/sink/jsonl"
	"github.com/ajitpratap0/feaout/pkg/sink/kafka"
	"github.com/ajitpratap0/feaout/pkg/sink/parquet"
	"github.com/ajitpratap0/feaout/pkg/sink/postgres"
	"github.com/ajitpratap0/feaout/pkg/sink/prom"
	"github.com/ajitpratap0/feaout/pkg/sink/screen"
	"github.com/ajitpratap0/feaout/pkg/sink/sqlite"
)

// buildSinks creates the sinks named by the output configuration
func (r *Reporter) buildSinks(opts Options) error {
	out := r.cfg.Output

	title := ""
	if r.analysis.Multizone {
		title = screen.ZoneTitle(out.Zone)
	}
	if opts.ScreenSink != nil {
		r.screen = opts.ScreenSink
	} else {
		r.screen = screen.New(stdoutIfNil(opts.Screen), title)
	}

	alg, err := compression.ParseAlgorithm(out.Compression)
	if err != nil {
		return err
	}
	if out.HistoryFile != "" {
		w := csv.NewHistoryWriter(out.HistoryFile, alg, compression.Default, r.logger)
		r.historySink = append(r.historySink, w)
		r.files = append(r.files, w.Path())
	}
	if out.JSONHistoryFile != "" {
		r.historySink = append(r.historySink, jsonl.New(out.JSONHistoryFile, r.logger))
		r.files = append(r.files, out.JSONHistoryFile)
	}
	if out.HistoryDatabase != "" {
		r.historySink = append(r.historySink,
			sqlite.New(out.HistoryDatabase, opts.RunID, r.analysis, r.logger))
		r.files = append(r.files, out.HistoryDatabase)
	}
	if out.ParquetHistoryFile != "" {
		r.historySink = append(r.historySink,
			parquet.NewHistoryWriter(out.ParquetHistoryFile, alg, parquet.RowGroupRows, r.logger))
		r.files = append(r.files, out.ParquetHistoryFile)
	}
	if out.AvroHistoryFile != "" {
		r.historySink = append(r.historySink, avro.NewHistoryWriter(out.AvroHistoryFile, alg, r.logger))
		r.files = append(r.files, out.AvroHistoryFile)
	}
	if out.HistoryPostgres != "" {
		r.historySink = append(r.historySink,
			postgres.New(out.HistoryPostgres, opts.RunID, r.analysis, r.logger))
	}
	if r.cfg.Kafka.Enabled() {
		r.historySink = append(r.historySink, kafka.New(r.cfg.Kafka, opts.RunID, out.Zone, r.logger))
	}
	if r.cfg.Metrics.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		r.historySink = append(r.historySink, prom.New(reg, out.Zone))
	}
	r.historySink = append(r.historySink, opts.History...)

	if out.VolumeFile != "" {
		r.volumeSink = append(r.volumeSink, volumeWriter(out.VolumeFile, r))
		r.files = append(r.files, out.VolumeFile)
	}
	if out.VolumeCSVFile != "" {
		r.volumeSink = append(r.volumeSink, csv.NewVolumeWriter(out.VolumeCSVFile, r.logger))
		r.files = append(r.files, out.VolumeCSVFile)
	}
	r.volumeSink = append(r.volumeSink, opts.Volume...)
	return nil
}

// volumeWriter picks the volume format from the file extension; Arrow is
// the default
func volumeWriter(path string, r *Reporter) sink.VolumeWriter {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return csv.NewVolumeWriter(path, r.logger)
	}
	return arrow.NewVolumeWriter(path, r.logger)
}
