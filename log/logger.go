// Copyright 2017 Microsoft. All rights reserved.
// MIT License

// Package log is the ambient logging layer shared by the kernel, store and
// network packages: a small level-filtered Logger over the standard log
// package, with a process-wide default instance for convenience.
package log

import (
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
	"path"
	"sync"
)

// Log level.
const (
	LevelAlert = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
)

// Log target.
const (
	TargetStderr = iota
	TargetSyslog
	TargetLogfile
	TargetStdout
)

const (
	logFileExtension = ".log"
	logFilePerm      = os.FileMode(0o664)
	syslogTag        = "rustycan4docker"

	// Log file rotation default limits, in bytes.
	maxLogFileSize   = 5 * 1024 * 1024
	maxLogFileCount  = 8
	rotationCheckFrq = 8

	// LogPath is the default directory for log files.
	LogPath = "/var/log/"
)

// Logger wraps the standard logger with level filtering and file rotation.
type Logger struct {
	l            *log.Logger
	out          io.WriteCloser
	name         string
	level        int
	target       int
	maxFileSize  int
	maxFileCount int
	callCount    int
	directory    string
	mutex        sync.Mutex
}

// NewLogger creates a new Logger targeting the given output.
func NewLogger(name string, level int, target int, directory string) *Logger {
	logger := &Logger{
		l:            log.New(nil, "", log.LstdFlags),
		name:         name,
		level:        level,
		maxFileSize:  maxLogFileSize,
		maxFileCount: maxLogFileCount,
		directory:    directory,
	}

	if err := logger.SetTarget(target); err != nil {
		logger.l.SetOutput(os.Stderr)
	}

	return logger
}

// SetName sets the log name.
func (logger *Logger) SetName(name string) {
	logger.name = name
}

// SetLevel sets the log chattiness.
func (logger *Logger) SetLevel(level int) {
	logger.level = level
}

// SetLogFileLimits sets the log file rotation limits.
func (logger *Logger) SetLogFileLimits(maxFileSize, maxFileCount int) {
	logger.maxFileSize = maxFileSize
	logger.maxFileCount = maxFileCount
}

// SetLogDirectory sets the directory log files are written to.
func (logger *Logger) SetLogDirectory(directory string) {
	logger.directory = directory
}

// GetLogDirectory returns the directory log files are written to.
func (logger *Logger) GetLogDirectory() string {
	if logger.directory != "" {
		return logger.directory
	}
	return LogPath
}

func (logger *Logger) getLogFileName() string {
	return path.Join(logger.GetLogDirectory(), logger.name+logFileExtension)
}

// SetTarget switches where the logger writes.
func (logger *Logger) SetTarget(target int) error {
	var out io.Writer
	var err error

	switch target {
	case TargetStderr:
		out = os.Stderr
	case TargetStdout:
		out = os.Stdout
	case TargetSyslog:
		out, err = syslog.New(log.LstdFlags, syslogTag)
	case TargetLogfile:
		out, err = os.OpenFile(logger.getLogFileName(), os.O_CREATE|os.O_APPEND|os.O_RDWR, logFilePerm)
	default:
		err = fmt.Errorf("invalid log target %d", target)
	}

	if err != nil {
		return err
	}

	logger.target = target
	if closer, ok := out.(io.WriteCloser); ok {
		logger.out = closer
	}
	logger.l.SetOutput(out)

	return nil
}

// Close closes the log stream.
func (logger *Logger) Close() {
	if logger.out != nil {
		logger.out.Close()
	}
}

// rotate checks the active log file size and rotates if necessary.
func (logger *Logger) rotate() {
	if logger.target != TargetLogfile || logger.out == nil {
		return
	}

	fileName := logger.getLogFileName()
	fileInfo, err := os.Stat(fileName)
	if err != nil {
		return
	}

	if fileInfo.Size() < int64(logger.maxFileSize) {
		return
	}

	logger.out.Close()

	var fn1, fn2 string
	for n := logger.maxFileCount - 1; n >= 0; n-- {
		fn2 = fn1
		if n == 0 {
			fn1 = fileName
		} else {
			fn1 = fmt.Sprintf("%v.%v", fileName, n)
		}
		if fn2 != "" {
			os.Rename(fn1, fn2)
		}
	}

	logger.SetTarget(TargetLogfile)
}

func (logger *Logger) logf(format string, args ...interface{}) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	if logger.callCount%rotationCheckFrq == 0 {
		logger.rotate()
	}
	logger.callCount++

	logger.l.Printf(format, args...)
}

// Printf logs a formatted string at info level.
func (logger *Logger) Printf(format string, args ...interface{}) {
	if logger.level >= LevelInfo {
		logger.logf(format, args...)
	}
}

// Debugf logs a formatted string at debug level.
func (logger *Logger) Debugf(format string, args ...interface{}) {
	if logger.level >= LevelDebug {
		logger.logf(format, args...)
	}
}

// Errorf logs a formatted string at error level; it is suppressed only when
// the level is LevelAlert.
func (logger *Logger) Errorf(format string, args ...interface{}) {
	if logger.level >= LevelError {
		logger.logf(format, args...)
	}
}

// Request logs a structured request.
func (logger *Logger) Request(tag string, request interface{}, err error) {
	if err == nil {
		logger.Printf("[%s] received %T %+v", tag, request, request)
	} else {
		logger.Printf("[%s] failed to decode %T: %s", tag, request, err.Error())
	}
}

// Response logs a structured response.
func (logger *Logger) Response(tag string, response interface{}, err error) {
	if err == nil {
		logger.Printf("[%s] sent %T %+v", tag, response, response)
	} else {
		logger.Printf("[%s] failed to encode %T: %s", tag, response, err.Error())
	}
}
