package logging

const (
	BaseDataDir   = "data"
	LogsDir       = "logs"
	LogFileFormat = "2006-01-02.log"
	TimeFormat    = "2006-01-02 15:04:05"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
)

type LogLevel string

const (
	Development LogLevel = "development" // debug and above
	Production  LogLevel = "production"  // info and above
)

// ProcessName names the log directory under data/logs
type ProcessName string

const (
	OperatorProcess     ProcessName = "operator"
	RegistrationProcess ProcessName = "registration"
	CLIProcess          ProcessName = "cli"
)

type LoggerConfig struct {
	LogDir      string
	ProcessName ProcessName
	Environment LogLevel
	UseColors   bool

	// Rotation settings, zero means the package default
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

func NewDefaultConfig(processName ProcessName) LoggerConfig {
	return LoggerConfig{
		LogDir:      BaseDataDir,
		ProcessName: processName,
		Environment: Development,
		UseColors:   true,
		MaxSizeMB:   50,
		MaxAgeDays:  30,
		MaxBackups:  10,
	}
}
