// Package domain holds the registry types shared by training and prediction
package domain

// Kind names a model family within a tenant's registry
type Kind string

// KindDefect is the calibrated defect-probability classifier
const KindDefect Kind = "defect"

// Metrics are the held-out evaluation results stored with a version.
// ROCAUC is nil when the test split held a single class
type Metrics struct {
	Accuracy  float64  `json:"accuracy"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	F1        float64  `json:"f1"`
	ROCAUC    *float64 `json:"roc_auc"`
}

// Meta describes one persisted model version
type Meta struct {
	TenantID     int64  `json:"tenant_id"`
	Kind         Kind   `json:"kind"`
	VersionID    string `json:"version_id"`
	SavedAt      string `json:"saved_at"`
	ModelPath    string `json:"model_path"`
	EncodersPath string `json:"encoders_path"`

	FeatureCols       []string           `json:"feature_cols"`
	Metrics           Metrics            `json:"metrics"`
	SamplesTrain      int                `json:"samples_train"`
	SamplesTest       int                `json:"samples_test"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	ClassDistribution map[string]int     `json:"class_distribution"`
}

// Artifact is a complete model version: serialized classifier, serialized
// encoders and the metadata linking them
type Artifact struct {
	Model    []byte
	Encoders []byte
	Meta     *Meta
}
