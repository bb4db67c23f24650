package common

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvDotEnvFile   = "DOTENV_FILE"
	EnvArtifactsDir = "ARTIFACTS_DIR"
	EnvCatalogPath  = "CATALOG_PATH"
	EnvDataPath     = "DATA_PATH"
	EnvListenPort   = "LISTEN_PORT"
	EnvReadTimeout  = "READ_TIMEOUT"
	EnvWriteTimeout = "WRITE_TIMEOUT"
	EnvHistoryLimit = "HISTORY_LIMIT"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvServerURL    = "MIGRAINE_SENSE_SERVER"
)

// Configuration defaults
const (
	DefaultDotEnvFile   = ".env"
	DefaultArtifactsDir = "models"
	DefaultListenPort   = 8080
	DefaultHistoryLimit = 20
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultDBFileName   = "migraine-sense.db"
)

// Artifact file names inside the artifacts directory
const (
	ScalerFile           = "scaler.json"
	ModelFile            = "model.json"
	LabelEncoderFile     = "label_encoder.json"
	SelectedFeaturesFile = "selected_features.json"
	ModelMetadataFile    = "model_metadata.json"
)

// Presentation constants
const (
	ManualEntryProfile = "Manual Entry"
	MinFormValue       = 0
	MaxFormValue       = 100
	DefaultFormValue   = 1
)

// Validation constants
const (
	MinListenPort   = 1024
	MaxListenPort   = 65535
	MaxHistoryLimit = 1000
)
