package constants

import "time"

// EntryKind distinguishes make-up ledger entries from informational ones
type EntryKind string

// ResetMode selects how new debt is combined with existing ledger history
type ResetMode string

const (
	AppName            = "qada"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/qada/qada.db"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "qada-"
	BackupFileSuffix = ".db"

	// Log file location, relative to the config directory, and rotation limits
	LogDirName    = "logs"
	LogFileName   = "qada.log"
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 28

	// Outbox spool for entries that could not be persisted
	OutboxFileName = "outbox.json"

	// Append retry policy
	AppendMaxRetries     = 3
	AppendRetryBaseDelay = 100 * time.Millisecond
	AppendAttemptTimeout = 5 * time.Second

	// Estimation constants
	DaysPerYear        = 365
	CyclesPerYear      = 12
	MaxExemptionDays   = 15
	PrayersPerSet      = 6
	MinDailyCapacity   = 0.5
	CompletionsPerSeed = 10
	DefaultTrendDays   = 14

	// Quality (khushu) rating bounds
	MinQualityRating = 1
	MaxQualityRating = 3

	// Entry kinds
	EntryKindQada       EntryKind = "qada"
	EntryKindCorrection EntryKind = "correction"

	// Reset modes
	ResetModeReplace  ResetMode = "replace"
	ResetModeAdditive ResetMode = "additive"
)
