package pipeline

import "mlengine/pkg/faults"

// StageName identifies a stage on the command line and in the dispatcher table.
type StageName string

// The stage vocabulary, in pipeline order.
const (
	DataIngestion       StageName = "data_ingestion"
	DataValidationPreT  StageName = "data_validation_pre_t"
	DataTransformation  StageName = "data_transformation"
	DataValidationPostT StageName = "data_validation_post_t"
	DataSplit           StageName = "data_split"
	ModelPreprocessing  StageName = "model_preprocessing"
	ModelTraining       StageName = "model_training"
	ModelValidation     StageName = "model_validation"
	ModelTesting        StageName = "model_testing"
)

var allStages = []StageName{
	DataIngestion,
	DataValidationPreT,
	DataTransformation,
	DataValidationPostT,
	DataSplit,
	ModelPreprocessing,
	ModelTraining,
	ModelValidation,
	ModelTesting,
}

var labels = map[StageName]string{
	DataIngestion:       "Data Ingestion Stage",
	DataValidationPreT:  "Data Validation Pre-Transformation Stage",
	DataTransformation:  "Data Transformation Stage",
	DataValidationPostT: "Data Validation Post-Transformation Stage",
	DataSplit:           "Data Split Stage",
	ModelPreprocessing:  "Model Preprocessing Stage",
	ModelTraining:       "Model Training Stage",
	ModelValidation:     "Model Validation Stage",
	ModelTesting:        "Model Testing Stage",
}

// AllStages returns the stage vocabulary in pipeline order.
func AllStages() []StageName {
	return append([]StageName(nil), allStages...)
}

// ParseStageName validates a stage name. Unknown names yield faults.ErrInvalidOption.
func ParseStageName(s string) (StageName, error) {
	name := StageName(s)
	if _, ok := labels[name]; !ok {
		return "", faults.InvalidOption(s)
	}
	return name, nil
}

// Label is the human readable title used in log banners.
func (n StageName) Label() string {
	return labels[n]
}

func (n StageName) String() string {
	return string(n)
}
