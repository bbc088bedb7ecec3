// Package nlog is the bus-wide logger: buffered, leveled, and
// depth-aware about its caller so that log lines always point at the
// real call site rather than this package.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

type logger struct {
	mu  sync.Mutex
	w   *bufio.Writer
	out *os.File
}

var (
	toStderr     bool
	alsoToStderr bool
	title        string

	def = &logger{w: bufio.NewWriterSize(os.Stderr, 4096), out: os.Stderr}
)

// InitFlags registers the two standard output-destination flags
// (-logtostderr, -alsologtostderr); daemons call this
// from their own flag.FlagSet before flag.Parse.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", true, "log to standard error instead of a file")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as a file")
}

// SetTitle is written once at the top of a rotated/opened log file.
func SetTitle(s string) { title = s }

// SetOutput redirects the logger at a file (e.g. from daemon startup,
// after the config/log-dir is known); passing nil reverts to stderr.
func SetOutput(f *os.File) {
	def.mu.Lock()
	defer def.mu.Unlock()
	if def.out != nil && def.out != os.Stderr {
		def.w.Flush()
		def.out.Close()
	}
	if f == nil {
		f = os.Stderr
	}
	def.out = f
	def.w = bufio.NewWriterSize(f, 4096)
	if title != "" {
		def.w.WriteString(title + "\n")
	}
}

func InfoDepth(depth int, args ...any)    { logit(sevInfo, depth+1, "", args...) }
func Infoln(args ...any)                  { logit(sevInfo, 1, "", args...) }
func Infof(format string, args ...any)    { logit(sevInfo, 1, format, args...) }
func Warningln(args ...any)               { logit(sevWarn, 1, "", args...) }
func Warningf(format string, args ...any) { logit(sevWarn, 1, format, args...) }
func ErrorDepth(depth int, args ...any)   { logit(sevErr, depth+1, "", args...) }
func Errorln(args ...any)                 { logit(sevErr, 1, "", args...) }
func Errorf(format string, args ...any)   { logit(sevErr, 1, format, args...) }

// Flush forces the buffered writer out; corebus.Server.Listen calls this
// on a housekeeper timer, and cmd/corebusd once more on shutdown.
func Flush() {
	def.mu.Lock()
	def.w.Flush()
	def.mu.Unlock()
}

func logit(sev severity, depth int, format string, args ...any) {
	line := format1(sev, depth+1, format, args...)
	def.mu.Lock()
	def.w.WriteString(line)
	if sev >= sevWarn || alsoToStderr || toStderr {
		if def.out != os.Stderr {
			os.Stderr.WriteString(line)
		}
	}
	if sev >= sevWarn {
		def.w.Flush()
	}
	def.mu.Unlock()
}

func format1(sev severity, depth int, format string, args ...any) string {
	var sb strings.Builder
	sb.WriteByte(sevChar[sev])
	sb.WriteByte(' ')
	sb.WriteString(time.Now().Format("15:04:05.000000"))
	sb.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 1); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		sb.WriteString(fn)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(ln))
		sb.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&sb, args...)
	} else {
		fmt.Fprintf(&sb, format, args...)
		if !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
