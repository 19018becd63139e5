package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Study    StudyConfig    `mapstructure:"study" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// StudyConfig contains the study engine's tunables: how long an idle session
// survives before auto-completion and how the completed-session archiver is
// provisioned.
type StudyConfig struct {
	// InactivityTimeout is how long an active session may sit idle before it
	// is completed automatically.
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout" validate:"required,min=1m"`

	// ArchiverWorkers is the number of goroutines draining the completed-
	// session archive queue.
	ArchiverWorkers int `mapstructure:"archiver_workers" validate:"required,gte=1,lte=32"`

	// ArchiverQueueSize bounds the in-memory archive queue.
	ArchiverQueueSize int `mapstructure:"archiver_queue_size" validate:"required,gte=1"`
}
