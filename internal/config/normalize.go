package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWatcher()
	c.normalizeNaming()
	c.normalizeOCR()
	c.normalizeClassifier()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	if c.Paths.FailedDir, err = expandPath(c.Paths.FailedDir); err != nil {
		return fmt.Errorf("paths.failed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.StabilitySeconds <= 0 {
		c.Watcher.StabilitySeconds = defaultStabilitySeconds
	}
	if c.Watcher.StabilityChecks <= 0 {
		c.Watcher.StabilityChecks = defaultStabilityChecks
	}
	if c.Watcher.RemotePollSeconds <= 0 {
		c.Watcher.RemotePollSeconds = defaultRemotePollSeconds
	}
}

func (c *Config) normalizeNaming() {
	if c.Naming.MaxLength <= 0 {
		c.Naming.MaxLength = defaultNamingMaxLength
	}
	if c.Naming.MaxStoredText <= 0 {
		c.Naming.MaxStoredText = defaultMaxStoredText
	}
}

func (c *Config) normalizeOCR() {
	if key := os.Getenv("DOCFLOW_OCR_API_KEY"); key != "" && c.OCR.APIKey == "" {
		c.OCR.APIKey = key
	}
	if strings.TrimSpace(c.OCR.BaseURL) == "" {
		c.OCR.BaseURL = defaultOCRBaseURL
	}
	if c.OCR.MaxPages <= 0 {
		c.OCR.MaxPages = defaultOCRMaxPages
	}
	if c.OCR.TimeoutSeconds <= 0 {
		c.OCR.TimeoutSeconds = defaultOCRTimeout
	}
}

func (c *Config) normalizeClassifier() {
	if key := os.Getenv("DOCFLOW_CLASSIFIER_API_KEY"); key != "" && c.Classifier.APIKey == "" {
		c.Classifier.APIKey = key
	}
	if strings.TrimSpace(c.Classifier.BaseURL) == "" {
		c.Classifier.BaseURL = defaultClassifierBaseURL
	}
	if strings.TrimSpace(c.Classifier.Model) == "" {
		c.Classifier.Model = defaultClassifierModel
	}
	if c.Classifier.MaxPromptChars <= 0 {
		c.Classifier.MaxPromptChars = defaultMaxPromptChars
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}
