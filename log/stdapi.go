// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package log

// stdLog is the process-wide default logger used by the package-level
// convenience functions below.
var stdLog = NewLogger("rustycan4docker", LevelInfo, TargetStderr, "")

// GetStd returns the standard logger.
func GetStd() *Logger {
	return stdLog
}

// SetLevel sets the standard logger's verbosity.
func SetLevel(level int) {
	stdLog.SetLevel(level)
}

// SetTarget switches the standard logger's output.
func SetTarget(target int) error {
	return stdLog.SetTarget(target)
}

// Request logs a structured request on the standard logger.
func Request(tag string, request interface{}, err error) {
	stdLog.Request(tag, request, err)
}

// Response logs a structured response on the standard logger.
func Response(tag string, response interface{}, err error) {
	stdLog.Response(tag, response, err)
}

// Printf logs a formatted string on the standard logger at info level.
func Printf(format string, args ...interface{}) {
	stdLog.Printf(format, args...)
}

// Debugf logs a formatted string on the standard logger at debug level.
func Debugf(format string, args ...interface{}) {
	stdLog.Debugf(format, args...)
}

// Errorf logs a formatted string on the standard logger at error level.
func Errorf(format string, args ...interface{}) {
	stdLog.Errorf(format, args...)
}
