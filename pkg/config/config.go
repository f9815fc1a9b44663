// Package config provides the configuration for the reporting subsystem.
//
// The configuration is organized into logical sections:
//   - Analysis: the read-only analysis snapshot that shapes the field catalogs
//   - Output: write cadence, zone convergence opt-in, file names, requested fields
//   - Logging: zap logger settings
//   - Metrics: prometheus settings
//   - Tracing: OpenTelemetry settings
//   - Kafka: live history stream
//   - Archive: where finished output files are copied
//
// Example usage:
//
//	cfg := config.NewDefault()
//	cfg.Analysis.GeometryMode = config.LargeDeformations
//	cfg.Analysis.SpatialDim = 3
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/ajitpratap0/feaout/pkg/archive"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/logger"
)

// GeometryMode selects between the linear and the nonlinear formulation
type GeometryMode string

const (
	// SmallDeformations is the linear analysis
	SmallDeformations GeometryMode = "SMALL_DEFORMATIONS"
	// LargeDeformations is the nonlinear analysis
	LargeDeformations GeometryMode = "LARGE_DEFORMATIONS"
)

// TimeMode selects between static and dynamic (time domain) analyses
type TimeMode string

const (
	// Static analysis, no inertia terms
	Static TimeMode = "STATIC"
	// Dynamic analysis, velocities and accelerations are part of the solution
	Dynamic TimeMode = "DYNAMIC"
)

// AnalysisConfig is the snapshot of solver configuration relevant to the
// shape of the field catalogs. It is supplied once and never mutated.
type AnalysisConfig struct {
	GeometryMode GeometryMode `yaml:"geometry_mode" json:"geometry_mode" mapstructure:"geometry_mode"`
	TimeMode     TimeMode     `yaml:"time_mode" json:"time_mode" mapstructure:"time_mode"`
	SpatialDim   int          `yaml:"spatial_dim" json:"spatial_dim" mapstructure:"spatial_dim"`
	Multizone    bool         `yaml:"multizone" json:"multizone" mapstructure:"multizone"`
}

// Validate reports unrecognized or contradictory analysis values
func (a AnalysisConfig) Validate() error {
	switch a.GeometryMode {
	case SmallDeformations, LargeDeformations:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unrecognized geometry mode %q", a.GeometryMode).
			WithDetail("geometry_mode", string(a.GeometryMode))
	}
	switch a.TimeMode {
	case Static, Dynamic:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unrecognized time mode %q", a.TimeMode).
			WithDetail("time_mode", string(a.TimeMode))
	}
	if a.SpatialDim != 2 && a.SpatialDim != 3 {
		return errors.Newf(errors.ErrorTypeConfig, "spatial dimension must be 2 or 3, got %d", a.SpatialDim).
			WithDetail("spatial_dim", a.SpatialDim)
	}
	return nil
}

// Linear reports whether the small-deformation variant is active
func (a AnalysisConfig) Linear() bool { return a.GeometryMode == SmallDeformations }

// Nonlinear reports whether the large-deformation variant is active
func (a AnalysisConfig) Nonlinear() bool { return a.GeometryMode == LargeDeformations }

// Dynamic reports whether the analysis is in the time domain
func (a AnalysisConfig) Dynamic() bool { return a.TimeMode == Dynamic }

// ThreeD reports whether out-of-plane components exist
func (a AnalysisConfig) ThreeD() bool { return a.SpatialDim == 3 }

// Frequency holds the settings the write gate consults every iteration
type Frequency struct {
	// WriteFrequency is the screen write frequency; headers repeat every 40 of these
	WriteFrequency int `yaml:"write_frequency" json:"write_frequency" mapstructure:"write_frequency"`
	// WriteZoneConvergence opts multizone runs into per-zone headers and rows
	WriteZoneConvergence bool `yaml:"write_zone_convergence" json:"write_zone_convergence" mapstructure:"write_zone_convergence"`
}

// OutputConfig describes where and what the sinks write
type OutputConfig struct {
	Frequency `yaml:",inline" json:",inline" mapstructure:",squash"`

	// Zone is this reporter's zone index, used for the multizone header string
	Zone int `yaml:"zone" json:"zone" mapstructure:"zone"`
	// Rank is this process' rank; only rank 0 writes
	Rank int `yaml:"rank" json:"rank" mapstructure:"rank"`

	// HistoryFile is the history CSV; empty disables it
	HistoryFile string `yaml:"history_file" json:"history_file" mapstructure:"history_file"`
	// VolumeFile is the Arrow IPC volume dataset; empty disables it
	VolumeFile string `yaml:"volume_file" json:"volume_file" mapstructure:"volume_file"`
	// VolumeCSVFile optionally writes the volume dataset as CSV as well
	VolumeCSVFile string `yaml:"volume_csv_file" json:"volume_csv_file" mapstructure:"volume_csv_file"`
	// JSONHistoryFile optionally mirrors history rows as JSON lines
	JSONHistoryFile string `yaml:"json_history_file" json:"json_history_file" mapstructure:"json_history_file"`
	// HistoryDatabase optionally stores history rows in a SQLite database
	HistoryDatabase string `yaml:"history_database" json:"history_database" mapstructure:"history_database"`
	// ParquetHistoryFile optionally writes history rows as Parquet
	ParquetHistoryFile string `yaml:"parquet_history_file" json:"parquet_history_file" mapstructure:"parquet_history_file"`
	// AvroHistoryFile optionally writes history rows as an Avro container file
	AvroHistoryFile string `yaml:"avro_history_file" json:"avro_history_file" mapstructure:"avro_history_file"`
	// HistoryPostgres is a PostgreSQL connection string for history rows
	HistoryPostgres string `yaml:"history_postgres" json:"history_postgres" mapstructure:"history_postgres"`

	// Compression compresses the history CSV (none, gzip, snappy, lz4, zstd, s2);
	// the Parquet and Avro files use the closest codec of their own
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`

	// Requested fields; empty means the default set for the analysis
	ScreenFields     []string `yaml:"screen_fields,omitempty" json:"screen_fields,omitempty" mapstructure:"screen_fields"`
	HistoryFields    []string `yaml:"history_fields,omitempty" json:"history_fields,omitempty" mapstructure:"history_fields"`
	VolumeFields     []string `yaml:"volume_fields,omitempty" json:"volume_fields,omitempty" mapstructure:"volume_fields"`
	ConvergenceField string   `yaml:"convergence_field" json:"convergence_field" mapstructure:"convergence_field"`
}

// IsMaster reports whether this process performs the actual writes
func (o OutputConfig) IsMaster() bool { return o.Rank == MasterRank }

// MasterRank is the designated writer process
const MasterRank = 0

// MetricsConfig contains prometheus settings
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" mapstructure:"listen_addr"`
}

// TracingConfig contains OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	// Exporter is "stdout" or "none"
	Exporter string `yaml:"exporter" json:"exporter" mapstructure:"exporter"`
}

// KafkaConfig publishes history rows to a topic
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers,omitempty" json:"brokers,omitempty" mapstructure:"brokers"`
	Topic    string   `yaml:"topic" json:"topic" mapstructure:"topic"`
	ClientID string   `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	// Compression is none, gzip, snappy, lz4 or zstd
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// RequiredAcks is all (default), local or none
	RequiredAcks string `yaml:"required_acks" json:"required_acks" mapstructure:"required_acks"`
}

// Enabled reports whether brokers and a topic are set
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 && k.Topic != "" }

// Config is the top-level configuration
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis" mapstructure:"analysis"`
	Output   OutputConfig   `yaml:"output" json:"output" mapstructure:"output"`
	Logging  logger.Config  `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	Kafka    KafkaConfig    `yaml:"kafka" json:"kafka" mapstructure:"kafka"`
	Archive  archive.Config `yaml:"archive" json:"archive" mapstructure:"archive"`
}

// NewDefault returns a configuration for a static, linear, 2-D single-zone run
// with the default file names.
func NewDefault() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			GeometryMode: SmallDeformations,
			TimeMode:     Static,
			SpatialDim:   2,
			Multizone:    false,
		},
		Output: OutputConfig{
			Frequency: Frequency{
				WriteFrequency:       1,
				WriteZoneConvergence: false,
			},
			Zone:        0,
			Rank:        MasterRank,
			HistoryFile: "history.csv",
			VolumeFile:  "flow.arrow",
			Compression: "none",
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "feaout",
			Exporter:    "none",
		},
	}
}

// Validate validates the configuration for correctness
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if c.Output.WriteFrequency < 0 {
		return errors.New(errors.ErrorTypeConfig, "write_frequency cannot be negative").
			WithDetail("write_frequency", c.Output.WriteFrequency)
	}
	if c.Output.Rank < 0 {
		return errors.New(errors.ErrorTypeConfig, "rank cannot be negative").
			WithDetail("rank", c.Output.Rank)
	}
	switch c.Output.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd", "s2":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", c.Output.Compression)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported tracing exporter %q", c.Tracing.Exporter)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New(errors.ErrorTypeConfig, "kafka brokers set without a topic")
	}
	switch c.Kafka.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported kafka compression %q", c.Kafka.Compression)
	}
	if c.Archive.Enabled() {
		if _, err := archive.ParseURL(c.Archive.URL); err != nil {
			return err
		}
	}
	return nil
}
