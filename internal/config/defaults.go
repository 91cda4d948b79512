package config

const (
	defaultDataDir           = "~/.local/share/docflow/data"
	defaultBackupDir         = "~/.local/share/docflow/backup"
	defaultFailedDir         = "~/.local/share/docflow/failed"
	defaultLogDir            = "~/.local/share/docflow/logs"
	defaultAPIBind           = "127.0.0.1:8590"
	defaultStabilitySeconds  = 2
	defaultStabilityChecks   = 3
	defaultRemotePollSeconds = 10
	defaultNamingMaxLength   = 50
	defaultMaxStoredText     = 10000
	defaultOCRBaseURL        = "https://vision.googleapis.com/v1/files:annotate"
	defaultOCRMaxPages       = 5
	defaultOCRTimeout        = 120
	defaultClassifierBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultClassifierModel   = "gemini-2.5-flash"
	defaultMaxPromptChars    = 8000
	defaultClassifierTimeout = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			BackupDir: defaultBackupDir,
			FailedDir: defaultFailedDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Watcher: Watcher{
			StabilitySeconds:  defaultStabilitySeconds,
			StabilityChecks:   defaultStabilityChecks,
			RemotePollSeconds: defaultRemotePollSeconds,
			ScanOnStart:       true,
		},
		Naming: Naming{
			MaxLength:     defaultNamingMaxLength,
			MaxStoredText: defaultMaxStoredText,
		},
		OCR: OCR{
			BaseURL:        defaultOCRBaseURL,
			MaxPages:       defaultOCRMaxPages,
			TimeoutSeconds: defaultOCRTimeout,
		},
		Classifier: Classifier{
			BaseURL:        defaultClassifierBaseURL,
			Model:          defaultClassifierModel,
			MaxPromptChars: defaultMaxPromptChars,
			TimeoutSeconds: defaultClassifierTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
