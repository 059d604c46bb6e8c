// Package rlog provides leveled logging for the reconstruction pipeline.
//
// Uses these prefixes: https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package rlog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]  "
	InfoPrefix  string = "<6>[INFO]   "
	WarnPrefix  string = "<4>[WARNING]"
	ErrPrefix   string = "<3>[ERROR]  "
)

var (
	DebugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	WarnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	DebugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	WarnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

// Init binds the logger to the run's configured log file and level.
// An empty logFile keeps output on stderr. Unknown levels fall back to "debug".
func Init(logFile, level string) error {
	var w io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("rlog: open log file %q: %w", logFile, err)
		}
		w = f
	}

	DebugWriter, InfoWriter, WarnWriter, ErrWriter = w, w, w, w
	rebuildLoggers()
	SetLevel(level)
	return nil
}

func rebuildLoggers() {
	DebugLog = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog = log.New(InfoWriter, InfoPrefix, 0)
	WarnLog = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	DebugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	WarnTimeLog = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
}

// SetLevel gates which writers are active. One of debug, info, warn, error.
func SetLevel(lvl string) {
	switch lvl {
	case "error":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing discarded
	default:
		fmt.Fprintf(os.Stderr, "rlog: unknown log level %q, using debug\n", lvl)
		SetLevel("debug")
		return
	}
	rebuildLoggers()
}

func SetLogDateTime(v bool) { logDateTime = v }

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Debug(v ...interface{}) {
	if DebugWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		DebugTimeLog.Output(2, out)
	} else {
		DebugLog.Output(2, out)
	}
}

func Info(v ...interface{}) {
	if InfoWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		InfoTimeLog.Output(2, out)
	} else {
		InfoLog.Output(2, out)
	}
}

func Warn(v ...interface{}) {
	if WarnWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		WarnTimeLog.Output(2, out)
	} else {
		WarnLog.Output(2, out)
	}
}

func Error(v ...interface{}) {
	if ErrWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		ErrTimeLog.Output(2, out)
	} else {
		ErrLog.Output(2, out)
	}
}

// Fatal logs at error level and terminates the process.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func printfStr(format string, v ...interface{}) string { return fmt.Sprintf(format, v...) }

func Debugf(format string, v ...interface{}) {
	if DebugWriter == io.Discard {
		return
	}
	out := printfStr(format, v...)
	if logDateTime {
		DebugTimeLog.Output(2, out)
	} else {
		DebugLog.Output(2, out)
	}
}

func Infof(format string, v ...interface{}) {
	if InfoWriter == io.Discard {
		return
	}
	out := printfStr(format, v...)
	if logDateTime {
		InfoTimeLog.Output(2, out)
	} else {
		InfoLog.Output(2, out)
	}
}

func Warnf(format string, v ...interface{}) {
	if WarnWriter == io.Discard {
		return
	}
	out := printfStr(format, v...)
	if logDateTime {
		WarnTimeLog.Output(2, out)
	} else {
		WarnLog.Output(2, out)
	}
}

func Errorf(format string, v ...interface{}) {
	if ErrWriter == io.Discard {
		return
	}
	out := printfStr(format, v...)
	if logDateTime {
		ErrTimeLog.Output(2, out)
	} else {
		ErrLog.Output(2, out)
	}
}

// Fatalf logs at error level and terminates the process.
func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}
