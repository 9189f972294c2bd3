// Package config provides the settings tree that parametrizes every pipeline stage.
// It loads a YAML document once, rejects unknown keys at every nesting level and
// validates required fields, enumerations and path values before any stage runs.
package config

import (
	"path/filepath"
	"slices"
)

// Default document locations, relative to the project directory.
const (
	DefaultSettingsFile = "config/settings.yaml"
	DefaultParamsFile   = "config/params.yaml"
	DefaultStatusFile   = "status.txt"
	DefaultLogDir       = "logs"
	DefaultWebAddr      = ":8080"
)

// Model type values.
const (
	ModelTypeRegression     = "regression"
	ModelTypeClassification = "classification"
)

// Preprocessing modes.
const (
	PrepModeJoint    = "joint"
	PrepModeDisjoint = "disjoint"
)

// Regression metric names.
const (
	MetricRMSE = "RMSE"
	MetricMAE  = "MAE"
	MetricR2   = "R2"
)

// Ledger drivers.
const (
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Split defaults. DefaultValidateSize is the share of the held-out rows that becomes the test split.
const (
	DefaultTestSize     = 0.4
	DefaultValidateSize = 0.5
)

// Settings is the root of the validated configuration tree.
// It is built once by Load and must be treated as read-only afterwards.
type Settings struct {
	ArtifactsRoot       Path                     `yaml:"artifacts_root" json:"artifacts_root"`
	Logging             LoggingConfig            `yaml:"logging" json:"logging"`
	Model               ModelConfig              `yaml:"model" json:"model"`
	DataIngestion       DataIngestionConfig      `yaml:"data_ingestion" json:"data_ingestion"`
	DataValidationPreT  DataValidationConfig     `yaml:"data_validation_pre_t" json:"data_validation_pre_t"`
	DataTransformation  DataTransformationConfig `yaml:"data_transformation" json:"data_transformation"`
	DataValidationPostT DataValidationConfig     `yaml:"data_validation_post_t" json:"data_validation_post_t"`
	DataSplit           DataSplitConfig          `yaml:"data_split" json:"data_split"`
	ModelPreprocessing  PreprocessingConfig      `yaml:"model_preprocessing" json:"model_preprocessing"`
	ModelTraining       TrainingConfig           `yaml:"model_training" json:"model_training"`
	ModelValidation     EvaluationConfig         `yaml:"model_validation" json:"model_validation"`
	ModelTesting        TestingConfig            `yaml:"model_testing" json:"model_testing"`
	Ledger              LedgerConfig             `yaml:"ledger" json:"ledger"`
	Telemetry           TelemetryConfig          `yaml:"telemetry" json:"telemetry"`
	WebApp              WebAppConfig             `yaml:"webapp" json:"webapp"`
}

// LoggingConfig controls the log file sink.
type LoggingConfig struct {
	Dir Path `yaml:"dir" json:"dir"`
	Tee bool `yaml:"tee" json:"tee"`
}

// ModelConfig describes the learning problem.
type ModelConfig struct {
	Target    string `yaml:"target" json:"target"`
	ModelType string `yaml:"model_type" json:"model_type"`
}

// Gate is the part shared by every stage that checks its inputs before acting.
type Gate struct {
	RootDir    Path   `yaml:"root_dir" json:"root_dir"`
	ReqFiles   []Path `yaml:"req_files" json:"req_files"`
	StatusFile string `yaml:"status_file" json:"status_file"`
}

// RequiredFiles returns a copy of the gated file list as plain strings.
func (g Gate) RequiredFiles() []string {
	out := make([]string, len(g.ReqFiles))
	for i, p := range g.ReqFiles {
		out[i] = p.String()
	}
	return out
}

// DataIngestionConfig drives the download and extraction of the raw dataset.
type DataIngestionConfig struct {
	RootDir    Path   `yaml:"root_dir" json:"root_dir"`
	SourceURL  string `yaml:"source_URL" json:"source_URL"`
	ZippedFile Path   `yaml:"zipped_file" json:"zipped_file"`
	UnzipDir   Path   `yaml:"unzip_dir" json:"unzip_dir"`
	DataFile   string `yaml:"data_file" json:"data_file"`
	StatusFile string `yaml:"status_file" json:"status_file"`
}

// ZipPath resolves zipped_file; relative values live under root_dir.
func (c DataIngestionConfig) ZipPath() string {
	return c.ZippedFile.ResolveUnder(c.RootDir)
}

// DataPath is the location of the extracted dataset.
func (c DataIngestionConfig) DataPath() string {
	return filepath.Join(c.UnzipDir.String(), c.DataFile)
}

// DataValidationConfig configures a structural and type check over a CSV file.
type DataValidationConfig struct {
	Gate     `yaml:",inline"`
	DataFile Path     `yaml:"data_file" json:"data_file"`
	RowRules []string `yaml:"row_rules" json:"row_rules"`
}

// Rules returns a copy of the configured row rules.
func (c DataValidationConfig) Rules() []string {
	return slices.Clone(c.RowRules)
}

// DataTransformationConfig configures the derived score columns.
type DataTransformationConfig struct {
	Gate                `yaml:",inline"`
	DataFile            Path `yaml:"data_file" json:"data_file"`
	DataFileTransformed Path `yaml:"data_file_transformed" json:"data_file_transformed"`
}

// DataSplitConfig configures the train/validate/test split.
type DataSplitConfig struct {
	Gate         `yaml:",inline"`
	DataFile     Path     `yaml:"data_file" json:"data_file"`
	SplitFiles   []string `yaml:"split_files" json:"split_files"`
	TestSize     float64  `yaml:"test_size" json:"test_size"`
	ValidateSize float64  `yaml:"validate_size" json:"validate_size"`
	RandomState  int64    `yaml:"random_state" json:"random_state"`
	DropColumns  []string `yaml:"drop_columns" json:"drop_columns"`
}

// Split file positions inside SplitFiles.
const (
	SplitXTrain = iota
	SplitXValidate
	SplitXTest
	SplitYTrain
	SplitYValidate
	SplitYTest
	splitFileCount
)

// SplitPaths returns the six output paths under root_dir.
func (c DataSplitConfig) SplitPaths() []string {
	out := make([]string, len(c.SplitFiles))
	for i, name := range c.SplitFiles {
		out[i] = filepath.Join(c.RootDir.String(), name)
	}
	return out
}

// Dropped returns a copy of the columns removed before splitting.
func (c DataSplitConfig) Dropped() []string {
	return slices.Clone(c.DropColumns)
}

// PreprocessingConfig configures the feature pipeline fit.
type PreprocessingConfig struct {
	Gate              `yaml:",inline"`
	PrepPipelineFile  string `yaml:"prep_pipeline_file" json:"prep_pipeline_file"`
	Mode              string `yaml:"mode" json:"mode"`
	NFeaturesToSelect int    `yaml:"n_features_to_select" json:"n_features_to_select"`
}

// PipelinePath is where the fitted preprocessor is written.
func (c PreprocessingConfig) PipelinePath() string {
	return filepath.Join(c.RootDir.String(), c.PrepPipelineFile)
}

// TrainingConfig configures the per-model hyperparameter search.
type TrainingConfig struct {
	Gate        `yaml:",inline"`
	ModelsDir   Path  `yaml:"models_dir" json:"models_dir"`
	ParamsFile  Path  `yaml:"params_file" json:"params_file"`
	RandomState int64 `yaml:"random_state" json:"random_state"`
}

// EvaluationConfig configures scoring of the trained models on a held-out split.
type EvaluationConfig struct {
	Gate        `yaml:",inline"`
	ModelsDir   Path   `yaml:"models_dir" json:"models_dir"`
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

// MetricsPath is where the metrics report is written.
func (c EvaluationConfig) MetricsPath() string {
	return filepath.Join(c.RootDir.String(), c.MetricsFile)
}

// TestingConfig extends evaluation with best-model selection.
type TestingConfig struct {
	EvaluationConfig   `yaml:",inline"`
	SelectedTestMetric string `yaml:"selected_test_metric" json:"selected_test_metric"`
	BestModelFile      string `yaml:"best_model_file" json:"best_model_file"`
}

// BestModelPath is where the selected model is copied.
func (c TestingConfig) BestModelPath() string {
	return filepath.Join(c.RootDir.String(), c.BestModelFile)
}

// LedgerConfig selects the stage run ledger backend. An empty driver disables it.
type LedgerConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// TelemetryConfig configures tracing export and the metrics textfile.
type TelemetryConfig struct {
	OTLPEndpoint    string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	Insecure        bool   `yaml:"insecure" json:"insecure"`
	MetricsTextfile Path   `yaml:"metrics_textfile" json:"metrics_textfile"`
}

// WebAppConfig configures the prediction form server.
type WebAppConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// applyDefaults fills optional fields left empty by the document.
func (s *Settings) applyDefaults() {
	if s.Logging.Dir == "" {
		s.Logging.Dir = DefaultLogDir
	}
	if s.DataIngestion.StatusFile == "" {
		s.DataIngestion.StatusFile = DefaultStatusFile
	}
	if s.DataSplit.TestSize == 0 {
		s.DataSplit.TestSize = DefaultTestSize
	}
	if s.DataSplit.ValidateSize == 0 {
		s.DataSplit.ValidateSize = DefaultValidateSize
	}
	if s.WebApp.Addr == "" {
		s.WebApp.Addr = DefaultWebAddr
	}
}
