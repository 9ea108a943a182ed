package config

import (
	"path/filepath"
	"sync"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Paths   PathsConfig   `yaml:"paths"`
	Archive ArchiveConfig `yaml:"archive"`
}

type ServerConfig struct {
	BaseURL   string `yaml:"base_url"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	QueueSize int    `yaml:"queue_size"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging"`
}

type PathsConfig struct {
	DownloadPath   string `yaml:"download_path"`
	DownloaderPath string `yaml:"downloader_path"`
	ArchivePath    string `yaml:"archive_path"`
}

type ArchiveConfig struct {
	AutoArchive bool `yaml:"auto_archive"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
		})
	}
	return instance
}

// Root directory holding the per-task download subdirectories.
// Removed in its entirety on shutdown.
func (c *Config) DownloadRoot() string {
	return filepath.Join(c.Paths.DownloadPath, "downloads")
}
