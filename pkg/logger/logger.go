// Package logger provides the structured, leveled logger every engine
// component logs through. It wraps hashicorp/go-hclog rather than a
// hand-rolled formatter so scope/context fields come out consistently and
// the level filter is the same one the rest of the ecosystem expects.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// Level mirrors hclog's level constants so call sites don't need to import
// hclog directly.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) hclog() hclog.Level {
	switch l {
	case DEBUG:
		return hclog.Debug
	case WARN:
		return hclog.Warn
	case ERROR:
		return hclog.Error
	default:
		return hclog.Info
	}
}

var global hclog.Logger

// Init opens logPath (creating its directory if needed) and installs it as
// the global logger's only sink. A dispatch core embedded in a host process
// must never write to stdout, so a failure to open the file falls back to
// stderr rather than the process's own output stream.
func Init(logPath string, level Level, serviceName string) error {
	logDir := filepath.Dir(logPath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create log directory %s: %v\n", logDir, err)
			global = hclog.New(&hclog.LoggerOptions{Name: serviceName, Level: level.hclog(), Output: os.Stderr, JSONFormat: true})
			return nil
		}
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open log file %s: %v\n", logPath, err)
		global = hclog.New(&hclog.LoggerOptions{Name: serviceName, Level: level.hclog(), Output: os.Stderr, JSONFormat: true})
		return nil
	}

	global = hclog.New(&hclog.LoggerOptions{
		Name:       serviceName,
		Level:      level.hclog(),
		Output:     file,
		JSONFormat: true,
	})
	return nil
}

func ctxArgs(scope string, ctx []map[string]interface{}) []interface{} {
	args := []interface{}{"scope", scope}
	if len(ctx) == 0 || ctx[0] == nil {
		return args
	}
	for k, v := range ctx[0] {
		args = append(args, k, v)
	}
	return args
}

// Info, Error, Debug, and Warn log through the global logger. They are
// no-ops until Init has been called.
func Info(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Info(msg, ctxArgs(scope, args)...)
}

func Error(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Error(msg, ctxArgs(scope, args)...)
}

func Debug(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Debug(msg, ctxArgs(scope, args)...)
}

func Warn(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Warn(msg, ctxArgs(scope, args)...)
}
