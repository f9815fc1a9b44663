package main

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/feaout/pkg/config"
)

const envPrefix = "FEAOUT"

// settings overlays flags and FEAOUT_* environment variables on a config
// file. Keys mirror the YAML layout, so output.write_frequency is set by
// --write-frequency or FEAOUT_OUTPUT_WRITE_FREQUENCY.
type settings struct {
	v *viper.Viper
}

// overridable maps viper keys to flag names
var overridable = map[string]string{
	"logging.level":                 "log-level",
	"output.write_frequency":        "write-frequency",
	"output.write_zone_convergence": "zone-convergence",
	"output.zone":                   "zone",
	"output.rank":                   "rank",
	"output.history_file":           "history",
	"output.volume_file":            "volume",
	"output.volume_csv_file":        "volume-csv",
	"output.json_history_file":      "json-history",
	"output.history_database":       "database",
	"output.parquet_history_file":   "parquet",
	"output.avro_history_file":      "avro",
	"output.history_postgres":       "postgres",
	"kafka.brokers":                 "kafka-brokers",
	"kafka.topic":                   "kafka-topic",
	"output.compression":            "compression",
	"output.convergence_field":      "convergence-field",
	"metrics.enabled":               "metrics",
	"metrics.listen_addr":           "metrics-addr",
	"tracing.enabled":               "tracing",
	"tracing.exporter":              "tracing-exporter",
	"archive.url":                   "archive",
	"archive.region":                "archive-region",
	"archive.endpoint":              "archive-endpoint",
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML configuration file")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Int("write-frequency", 1, "Screen write frequency; headers repeat every 40 intervals")
	fs.Bool("zone-convergence", false, "Print per-zone headers and rows in multizone runs")
	fs.Int("zone", 0, "Zone index")
	fs.Int("rank", 0, "Process rank; only rank 0 writes")
	fs.String("history", "history.csv", "History CSV file, empty to disable")
	fs.String("volume", "flow.arrow", "Volume file (.arrow or .csv), empty to disable")
	fs.String("volume-csv", "", "Additional CSV volume file")
	fs.String("json-history", "", "JSON lines history mirror")
	fs.String("database", "", "SQLite history database")
	fs.String("parquet", "", "Parquet history file")
	fs.String("avro", "", "Avro history file")
	fs.String("postgres", "", "PostgreSQL connection string for history rows")
	fs.StringSlice("kafka-brokers", nil, "Kafka brokers for the live history stream")
	fs.String("kafka-topic", "feaout.history", "Kafka topic for the live history stream")
	fs.String("compression", "none", "History file compression (none, gzip, snappy, lz4, zstd, s2)")
	fs.String("convergence-field", "", "Monitored convergence field")
	fs.Bool("metrics", false, "Serve Prometheus metrics")
	fs.String("metrics-addr", ":9090", "Metrics listen address")
	fs.Bool("tracing", false, "Enable OpenTelemetry tracing")
	fs.String("tracing-exporter", "stdout", "Tracing exporter (stdout, none)")
	fs.String("archive", "", "Copy output files here when done (s3://bucket/prefix, gs://bucket/prefix or a directory)")
	fs.String("archive-region", "", "S3 region for --archive")
	fs.String("archive-endpoint", "", "Object storage endpoint override for --archive")
}

func newSettings(fs *pflag.FlagSet) (*settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, flag := range overridable {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, err
		}
	}
	if err := v.BindPFlag("config", fs.Lookup("config")); err != nil {
		return nil, err
	}
	return &settings{v: v}, nil
}

// load reads the config file, if any, then applies every flag and
// environment variable that was explicitly set
func (s *settings) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.NewDefault()
	if path := s.v.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := func(key string) bool {
		if f := fs.Lookup(overridable[key]); f != nil && f.Changed {
			return true
		}
		_, ok := lookupEnv(key)
		return ok
	}

	if set("logging.level") {
		cfg.Logging.Level = s.v.GetString("logging.level")
	}
	if set("output.write_frequency") {
		cfg.Output.WriteFrequency = s.v.GetInt("output.write_frequency")
	}
	if set("output.write_zone_convergence") {
		cfg.Output.WriteZoneConvergence = s.v.GetBool("output.write_zone_convergence")
	}
	if set("output.zone") {
		cfg.Output.Zone = s.v.GetInt("output.zone")
	}
	if set("output.rank") {
		cfg.Output.Rank = s.v.GetInt("output.rank")
	}
	if set("output.history_file") {
		cfg.Output.HistoryFile = s.v.GetString("output.history_file")
	}
	if set("output.volume_file") {
		cfg.Output.VolumeFile = s.v.GetString("output.volume_file")
	}
	if set("output.volume_csv_file") {
		cfg.Output.VolumeCSVFile = s.v.GetString("output.volume_csv_file")
	}
	if set("output.json_history_file") {
		cfg.Output.JSONHistoryFile = s.v.GetString("output.json_history_file")
	}
	if set("output.history_database") {
		cfg.Output.HistoryDatabase = s.v.GetString("output.history_database")
	}
	if set("output.parquet_history_file") {
		cfg.Output.ParquetHistoryFile = s.v.GetString("output.parquet_history_file")
	}
	if set("output.avro_history_file") {
		cfg.Output.AvroHistoryFile = s.v.GetString("output.avro_history_file")
	}
	if set("output.history_postgres") {
		cfg.Output.HistoryPostgres = s.v.GetString("output.history_postgres")
	}
	if set("kafka.brokers") {
		cfg.Kafka.Brokers = s.v.GetStringSlice("kafka.brokers")
	}
	if set("kafka.topic") || (len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic == "") {
		cfg.Kafka.Topic = s.v.GetString("kafka.topic")
	}
	if set("output.compression") {
		cfg.Output.Compression = s.v.GetString("output.compression")
	}
	if set("output.convergence_field") {
		cfg.Output.ConvergenceField = s.v.GetString("output.convergence_field")
	}
	if set("metrics.enabled") {
		cfg.Metrics.Enabled = s.v.GetBool("metrics.enabled")
	}
	if set("metrics.listen_addr") {
		cfg.Metrics.ListenAddr = s.v.GetString("metrics.listen_addr")
	}
	if set("tracing.enabled") {
		cfg.Tracing.Enabled = s.v.GetBool("tracing.enabled")
	}
	if set("tracing.exporter") {
		cfg.Tracing.Exporter = s.v.GetString("tracing.exporter")
	}
	if set("archive.url") {
		cfg.Archive.URL = s.v.GetString("archive.url")
	}
	if set("archive.region") {
		cfg.Archive.Region = s.v.GetString("archive.region")
	}
	if set("archive.endpoint") {
		cfg.Archive.Endpoint = s.v.GetString("archive.endpoint")
	}
	return cfg, nil
}

// envName returns the environment variable viper consults for key
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(envName(key))
}
