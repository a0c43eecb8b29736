// Package config provides the configuration object passed explicitly into every cycling component.
// Values that must be visible across batch allocations are persisted elsewhere (step table,
// namelist, restart counter); this object only carries the experiment's static settings.
package config

import "time"

// EmbeddedConfig holds the content of the default configuration file compiled into the binary.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Dependency modes of the WaitForSignal abstraction.
const (
	DependencyModePoll   = "poll"
	DependencyModeNative = "native"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
	// TailLines is the number of log lines surfaced to standard output on a fatal condition.
	TailLines int `yaml:"tail_lines"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the timezone used to display wall-clock times (step timestamps are always UTC).
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// ExperimentConfig describes the on-disk layout of one experiment.
type ExperimentConfig struct {
	Name string `yaml:"name"`
	// IniDir is the experiment root; it holds the step table, the namelist templates and one directory per step.
	IniDir string `yaml:"ini_dir"`
	// StepFile is the step table file name, relative to IniDir.
	StepFile string `yaml:"step_file"`
	// OutputDir is the canonical output area for produced artifacts, relative to IniDir unless absolute.
	OutputDir string `yaml:"output_dir"`
	// StateDir holds durable orchestrator state (restart counters), relative to IniDir unless absolute.
	StateDir string `yaml:"state_dir"`
	// ScratchDir is the fast ephemeral area used by preprocessing; purged at every preprocessing invocation.
	ScratchDir string `yaml:"scratch_dir"`
	// StaticDir holds terrain preprocessing output, relative to IniDir unless absolute.
	StaticDir string `yaml:"static_dir"`
	// PreprocessNamelist and SimulationNamelist are template file names in IniDir, copied into every step directory.
	PreprocessNamelist string `yaml:"preprocess_namelist"`
	SimulationNamelist string `yaml:"simulation_namelist"`
	// MaxDomains is the number of nested domains; 0 reads max_dom from the simulation namelist.
	MaxDomains int `yaml:"max_domains"`
	// LeapYears selects the Gregorian calendar; false selects a no-leap calendar.
	LeapYears bool `yaml:"leap_years"`
	// RestartIntervals is the number of restart outputs written per step.
	RestartIntervals int `yaml:"restart_intervals"`
	// RestartPrefix is the prefix of restart artifact names (prefix_dNN_timestamp).
	RestartPrefix string `yaml:"restart_prefix"`
	// TerrainPrefix is the prefix of terrain preprocessing output files (prefix.dNN.nc).
	TerrainPrefix string `yaml:"terrain_prefix"`
	// OutputGlobs are moved from the working directory into OutputDir after a successful simulation.
	OutputGlobs []string `yaml:"output_globs"`
	// PreservedFiles survive a CLEAN purge of the step that is about to run.
	PreservedFiles []string `yaml:"preserved_files"`
}

// SequenceConfig holds the parameters used to generate the step table.
type SequenceConfig struct {
	Begin    string `yaml:"begin"`
	End      string `yaml:"end"`
	Interval string `yaml:"interval"`
	// Steps, when positive, generates exactly this many steps and ignores End.
	Steps int `yaml:"steps"`
}

// ScriptsConfig names the job scripts of the external collaborators.
type ScriptsConfig struct {
	Preprocess string `yaml:"preprocess"`
	Simulation string `yaml:"simulation"`
	Watcher    string `yaml:"watcher"`
	Archive    string `yaml:"archive"`
	Average    string `yaml:"average"`
}

// SchedulerConfig configures job submission and waiting.
type SchedulerConfig struct {
	// Type selects the JobSubmitter implementation ("slurm", "pbs", "local").
	Type string `yaml:"type"`
	// DependencyMode selects the Waiter implementation ("poll" or "native").
	DependencyMode        string        `yaml:"dependency_mode"`
	PollIntervalSeconds   int           `yaml:"poll_interval_seconds"`
	GracePeriodSeconds    int           `yaml:"grace_period_seconds"`
	WaitTimeoutSeconds    int           `yaml:"wait_timeout_seconds"`
	TransientDelaySeconds int           `yaml:"transient_delay_seconds"`
	SubmitArgs            []string      `yaml:"submit_args"`
	Scripts               ScriptsConfig `yaml:"scripts"`
}

// PollInterval returns PollIntervalSeconds as a time.Duration.
func (s SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// GracePeriod returns GracePeriodSeconds as a time.Duration.
func (s SchedulerConfig) GracePeriod() time.Duration {
	return time.Duration(s.GracePeriodSeconds) * time.Second
}

// TransientDelay returns TransientDelaySeconds as a time.Duration.
func (s SchedulerConfig) TransientDelay() time.Duration {
	return time.Duration(s.TransientDelaySeconds) * time.Second
}

// WaitTimeout returns WaitTimeoutSeconds as a time.Duration; zero means no timeout.
func (s SchedulerConfig) WaitTimeout() time.Duration {
	return time.Duration(s.WaitTimeoutSeconds) * time.Second
}

// PreprocessConfig describes the preprocessing collaborator.
type PreprocessConfig struct {
	// Commands are run in order inside the step directory by the preprocessing wrapper.
	Commands [][]string `yaml:"commands"`
	// TerrainCommand runs terrain preprocessing for a FRESH start.
	TerrainCommand []string `yaml:"terrain_command"`
	// LogFile is the designated log searched for SuccessMarker.
	LogFile       string `yaml:"log_file"`
	SuccessMarker string `yaml:"success_marker"`
	// Sentinel is written by the wrapper when the preprocessing job ends, whatever the outcome.
	Sentinel string `yaml:"sentinel"`
	// JobIDFile records the batch job id of the submitted preprocessing job.
	JobIDFile string `yaml:"job_id_file"`
}

// MarkersConfig holds the text markers scraped from simulation logs.
type MarkersConfig struct {
	// PrimaryLog is the rank-0 log carrying the success and main-loop markers.
	PrimaryLog string `yaml:"primary_log"`
	// RankLogGlobs select every rank's log.
	RankLogGlobs   []string `yaml:"rank_log_globs"`
	Success        string   `yaml:"success"`
	MainLoop       string   `yaml:"main_loop"`
	Instability    []string `yaml:"instability"`
	SegFault       []string `yaml:"segfault"`
	TransientFault []string `yaml:"transient_fault"`
	ResultFile     string   `yaml:"result_file"`
}

// SimulationConfig describes the simulation collaborator.
type SimulationConfig struct {
	Command []string `yaml:"command"`
	// Output captures stdout/stderr of Command inside the working directory.
	Output     string        `yaml:"output"`
	Classifier string        `yaml:"classifier"`
	Markers    MarkersConfig `yaml:"markers"`
}

// DecrementBand maps a lower bound of the current time step to the decrement applied.
type DecrementBand struct {
	MinTimeStep float64 `yaml:"min_time_step"`
	Decrement   float64 `yaml:"decrement"`
}

// NamelistKey locates one stability parameter in the simulation namelist.
type NamelistKey struct {
	Section string `yaml:"section"`
	Key     string `yaml:"key"`
}

// RecoveryConfig configures the crash recovery policy.
type RecoveryConfig struct {
	MaxRestarts int `yaml:"max_restarts"`
	// InitialTimeStep is the unmodified time step; 0 reads it from the simulation namelist template.
	InitialTimeStep float64         `yaml:"initial_time_step"`
	Bands           []DecrementBand `yaml:"bands"`
	Enumerator      int             `yaml:"enumerator"`
	Denominator     int             `yaml:"denominator"`
	DampingFactor   float64         `yaml:"damping_factor"`
	TimeStepKey     NamelistKey     `yaml:"time_step_key"`
	SubStepKey      NamelistKey     `yaml:"sub_step_key"`
	DampingKey      NamelistKey     `yaml:"damping_key"`
	CanopyKey       NamelistKey     `yaml:"canopy_key"`
}

// ReportConfig configures the Parquet export of the attempt ledger.
type ReportConfig struct {
	Enabled    bool   `yaml:"enabled"`
	StorageRef string `yaml:"storage_ref"`
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
}

// PostprocessConfig configures the post-processing dispatcher.
type PostprocessConfig struct {
	ArchiveInterval string       `yaml:"archive_interval"`
	AverageInterval string       `yaml:"average_interval"`
	Report          ReportConfig `yaml:"report"`
}

// BackupConfig configures the static-input backup.
type BackupConfig struct {
	Enabled    bool     `yaml:"enabled"`
	StorageRef string   `yaml:"storage_ref"`
	Bucket     string   `yaml:"bucket"`
	Prefix     string   `yaml:"prefix"`
	Files      []string `yaml:"files"`
}

// LedgerConfig configures the attempt ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBRef   string `yaml:"db_ref"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile is written at the end of each invocation (node exporter textfile collector format).
	Textfile string `yaml:"textfile"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// OTLPEndpoint enables the OTLP/HTTP exporter when set (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// AdapterConfig holds raw adapter maps, decoded per connection by the adapters themselves.
type AdapterConfig struct {
	Database map[string]interface{} `yaml:"database"`
	Storage  map[string]interface{} `yaml:"storage"`
}

// WrfcycleConfig holds all configuration under the "wrfcycle" top-level key.
type WrfcycleConfig struct {
	System      SystemConfig      `yaml:"system"`
	Experiment  ExperimentConfig  `yaml:"experiment"`
	Sequence    SequenceConfig    `yaml:"sequence"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Preprocess  PreprocessConfig  `yaml:"preprocess"`
	Simulation  SimulationConfig  `yaml:"simulation"`
	Recovery    RecoveryConfig    `yaml:"recovery"`
	Postprocess PostprocessConfig `yaml:"postprocess"`
	Backup      BackupConfig      `yaml:"backup"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Adapter     AdapterConfig     `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Wrfcycle WrfcycleConfig `yaml:"wrfcycle"`
}

// NewConfig returns a new instance of Config with default values.
// The defaults describe a WRF experiment driven through Slurm with file polling.
func NewConfig() *Config {
	return &Config{
		Wrfcycle: WrfcycleConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", TailLines: 40},
			},
			Experiment: ExperimentConfig{
				IniDir:             ".",
				StepFile:           "stepfile",
				OutputDir:          "wrfout",
				StateDir:           ".wrfcycle",
				StaticDir:          "static",
				PreprocessNamelist: "namelist.wps",
				SimulationNamelist: "namelist.input",
				LeapYears:          true,
				RestartIntervals:   1,
				RestartPrefix:      "wrfrst",
				TerrainPrefix:      "geo_em",
				OutputGlobs:        []string{"wrfout_d*", "wrfrst_d*", "wrfxtrm_d*"},
				PreservedFiles:     []string{"namelist.input", "namelist.wps"},
			},
			Sequence: SequenceConfig{Interval: "1M"},
			Scheduler: SchedulerConfig{
				Type:                  "slurm",
				DependencyMode:        DependencyModePoll,
				PollIntervalSeconds:   30,
				GracePeriodSeconds:    60,
				TransientDelaySeconds: 300,
			},
			Preprocess: PreprocessConfig{
				LogFile:       "preprocess.log",
				SuccessMarker: "SUCCESS COMPLETE REAL_EM INIT",
				Sentinel:      "preprocess.done",
				JobIDFile:     "preprocess.jobid",
			},
			Simulation: SimulationConfig{
				Output:     "simulation.out",
				Classifier: "marker",
				Markers: MarkersConfig{
					PrimaryLog:     "rsl.error.0000",
					RankLogGlobs:   []string{"rsl.error.*", "rsl.out.*"},
					Success:        "SUCCESS COMPLETE WRF",
					MainLoop:       "Timing for main",
					Instability:    []string{"NaN", "points exceeded cfl"},
					SegFault:       []string{"Segmentation fault", "SIGSEGV", "forrtl: severe (174)"},
					TransientFault: []string{"Application launch failed", "Communication failure", "Connection reset by peer"},
					ResultFile:     "run_result.json",
				},
			},
			Recovery: RecoveryConfig{
				MaxRestarts:   5,
				Bands:         DefaultDecrementBands(),
				Enumerator:    5,
				Denominator:   4,
				DampingFactor: 0.5,
				TimeStepKey:   NamelistKey{Section: "domains", Key: "time_step"},
				SubStepKey:    NamelistKey{Section: "dynamics", Key: "time_step_sound"},
				DampingKey:    NamelistKey{Section: "dynamics", Key: "epssm"},
				CanopyKey:     NamelistKey{Section: "physics", Key: "sf_urban_physics"},
			},
			Postprocess: PostprocessConfig{
				ArchiveInterval: "YEARLY",
				AverageInterval: "MONTHLY",
			},
			Ledger: LedgerConfig{DBRef: "ledger"},
			Adapter: AdapterConfig{
				Database: map[string]interface{}{},
				Storage:  map[string]interface{}{},
			},
		},
	}
}

// DefaultDecrementBands returns the default time-step decrement bands, largest first.
func DefaultDecrementBands() []DecrementBand {
	return []DecrementBand{
		{MinTimeStep: 240, Decrement: 120},
		{MinTimeStep: 120, Decrement: 60},
		{MinTimeStep: 60, Decrement: 30},
		{MinTimeStep: 30, Decrement: 15},
		{MinTimeStep: 20, Decrement: 10},
		{MinTimeStep: 0, Decrement: 5},
	}
}
