/*
	Package-level logging with optional rotating log files.  Log messages
	go to stdout until SetLogger is given a log file path.
*/

package voxel

import (
	"fmt"
	"log"
	"time"

	"github.com/natefinch/lumberjack"
)

// ModeFlag describes the verbosity of logging.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

var mode = InfoMode

// SetLogMode sets the severity required for a log message to be printed.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// LogConfig configures where log messages go and how log files rotate.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"` // megabytes
	MaxAge  int `toml:"max_log_age"`  // days
}

// SetLogger routes log output to a rotating log file.  A nil config or
// empty Logfile keeps messages on stdout.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		Infof("Sending log messages to stdout since no log file specified.")
		return
	}
	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}
	log.SetOutput(l)
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		log.Printf(" DEBUG "+format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		log.Printf("  INFO "+format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		log.Printf("  WARN "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		log.Printf(" ERROR "+format, args...)
	}
}

// TimeLog adds elapsed time to logging.
// Example:
//
//	mylog := NewTimeLog()
//	...
//	mylog.Infof("stuff happened")  // Appends elapsed time from NewTimeLog().
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s\n", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s\n", append(args, time.Since(t.start))...)
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	Errorf(format+": %s\n", append(args, time.Since(t.start))...)
}
