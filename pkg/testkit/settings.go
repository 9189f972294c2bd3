package testkit

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mlengine/pkg/config"
)

// SmallParams is a quick hyperparameter document covering every model family.
const SmallParams = `Linear Regression: {}
Ridge:
  grid_search:
    alpha: [0.1, 10]
  cv: 3
Lasso:
  grid_search:
    alpha: [0.01, 0.5]
  cv: 3
K-Neighbors Regressor:
  grid_search:
    n_neighbors: [3, 7]
  cv: 3
Decision Tree:
  random_search:
    max_depth: [3, 5, 8]
    min_samples_leaf: [1, 3]
  n_iter: 3
  cv: 3
Random Forest Regressor:
  grid_search:
    n_estimators: [5]
    max_depth: [4]
  cv: 3
`

const settingsTemplate = `artifacts_root: %[1]s/artifacts
logging:
  dir: %[1]s/logs
model:
  target: math_score
  model_type: regression
data_ingestion:
  root_dir: %[1]s/artifacts/data_ingestion
  source_URL: %[2]s
  zipped_file: data.zip
  unzip_dir: %[1]s/artifacts/data_ingestion
  data_file: stud.csv
data_validation_pre_t:
  root_dir: %[1]s/artifacts/data_validation_pre_t
  req_files: [%[1]s/artifacts/data_ingestion/stud.csv]
  status_file: status.txt
  data_file: %[1]s/artifacts/data_ingestion/stud.csv
  row_rules:
    - "row.math_score >= 0 && row.math_score <= 100"
data_transformation:
  root_dir: %[1]s/artifacts/data_transformation
  req_files: [%[1]s/artifacts/data_ingestion/stud.csv]
  status_file: status.txt
  data_file: %[1]s/artifacts/data_ingestion/stud.csv
  data_file_transformed: %[1]s/artifacts/data_transformation/stud_transformed.csv
data_validation_post_t:
  root_dir: %[1]s/artifacts/data_validation_post_t
  req_files: [%[1]s/artifacts/data_transformation/stud_transformed.csv]
  status_file: status.txt
  data_file: %[1]s/artifacts/data_transformation/stud_transformed.csv
  row_rules:
    - "row.total_score == row.math_score + row.reading_score + row.writing_score"
data_split:
  root_dir: %[1]s/artifacts/data_split
  req_files: [%[1]s/artifacts/data_transformation/stud_transformed.csv]
  status_file: status.txt
  data_file: %[1]s/artifacts/data_transformation/stud_transformed.csv
  split_files: [X_train.csv, X_validate.csv, X_test.csv, y_train.csv, y_validate.csv, y_test.csv]
  test_size: 0.4
  validate_size: 0.5
  random_state: 42
  drop_columns: [total_score, average]
model_preprocessing:
  root_dir: %[1]s/artifacts/model_preprocessing
  req_files:
    - %[1]s/artifacts/data_split/X_train.csv
    - %[1]s/artifacts/data_split/y_train.csv
  status_file: status.txt
  prep_pipeline_file: preprocessor.json
  mode: joint
model_training:
  root_dir: %[1]s/artifacts/model_training
  req_files:
    - %[1]s/artifacts/data_split/X_train.csv
    - %[1]s/artifacts/data_split/y_train.csv
    - %[1]s/artifacts/model_preprocessing/preprocessor.json
  status_file: status.txt
  models_dir: %[1]s/artifacts/model_training/models
  params_file: %[1]s/params.yaml
  random_state: 42
model_validation:
  root_dir: %[1]s/artifacts/model_validation
  req_files:
    - %[1]s/artifacts/data_split/X_validate.csv
    - %[1]s/artifacts/data_split/y_validate.csv
    - %[1]s/artifacts/model_preprocessing/preprocessor.json
  status_file: status.txt
  models_dir: %[1]s/artifacts/model_training/models
  metrics_file: metrics.json
model_testing:
  root_dir: %[1]s/artifacts/model_testing
  req_files:
    - %[1]s/artifacts/data_split/X_test.csv
    - %[1]s/artifacts/data_split/y_test.csv
    - %[1]s/artifacts/model_preprocessing/preprocessor.json
  status_file: status.txt
  models_dir: %[1]s/artifacts/model_training/models
  metrics_file: metrics.json
  selected_test_metric: R2
  best_model_file: best_model.json
`

// SettingsYAML renders a settings document whose paths all live under root.
func SettingsYAML(root, sourceURL string) string {
	return fmt.Sprintf(settingsTemplate, filepath.ToSlash(root), sourceURL)
}

// Settings loads a validated settings tree rooted at root and writes SmallParams
// to the configured params file.
func Settings(t testing.TB, root, sourceURL string) *config.Settings {
	t.Helper()
	s, err := config.LoadBytes([]byte(SettingsYAML(root, sourceURL)), "testkit")
	if err != nil {
		t.Fatalf("testkit settings rejected: %v", err)
	}
	if err := os.WriteFile(s.ModelTraining.ParamsFile.String(), []byte(SmallParams), 0644); err != nil {
		t.Fatalf("failed to write params: %v", err)
	}
	return s
}
