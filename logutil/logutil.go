// Package logutil 全局日志封装，所有包通过它输出进度与错误
package logutil

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	logger  = log.NewWithOptions(os.Stderr, log.Options{Prefix: "publisher", ReportTimestamp: true, Level: log.InfoLevel})
	verbose bool
	mu      sync.RWMutex
)

// SetVerbose 切换详细日志（Debug 级别）
func SetVerbose(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = enable
	if enable {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// Verbose 是否开启了详细日志
func Verbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput 重定向日志输出，测试中用来静音
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Debugf 详细步骤日志，仅 --verbose 时输出
func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Infof 普通进度日志
func Infof(format string, args ...any) {
	logger.Infof(format, args...)
}

// Warnf 警告日志
func Warnf(format string, args ...any) {
	logger.Warnf(format, args...)
}

// Errorf 错误日志
func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
}
