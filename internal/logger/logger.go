package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fachebot/oneline/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 控制台输出文本日志，文件输出 JSON 日志，两者级别独立
type Logger struct {
	console *logrus.Logger
	file    *logrus.Logger
	rotator *lumberjack.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
)

func init() {
	// 加载配置前使用默认值，保证启动阶段的日志也能落盘
	var c config.Config
	c.SetDefaults()
	l, err := newLogger(&c.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
	}
	defaultLogger = l
}

func newLogger(c *config.Log) (*Logger, error) {
	consoleLevel, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", c.Level, err)
	}
	fileLevel, err := logrus.ParseLevel(c.FileLevel)
	if err != nil {
		return nil, fmt.Errorf("无效的文件日志级别 %q: %w", c.FileLevel, err)
	}

	// 控制台日志配置
	console := logrus.New()
	console.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	console.SetOutput(os.Stdout)
	console.SetLevel(consoleLevel)

	// 文件日志配置
	file := logrus.New()
	file.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint:     false,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	file.SetLevel(fileLevel)

	l := &Logger{console: console, file: file}
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		file.SetOutput(io.Discard)
		return l, fmt.Errorf("无法创建日志目录: %w", err)
	}

	// 使用lumberjack进行日志轮转
	l.rotator = &lumberjack.Logger{
		Filename:   filepath.Join(c.Dir, "oneline.log"),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   true,
	}
	file.SetOutput(l.rotator)
	return l, nil
}

// Setup 按配置重建控制台和文件日志
func Setup(c *config.Log) error {
	l, err := newLogger(c)
	if l == nil {
		return err
	}

	mu.Lock()
	old := defaultLogger
	defaultLogger = l
	mu.Unlock()

	if old != nil && old.rotator != nil {
		_ = old.rotator.Close()
	}
	return err
}

// Close 关闭日志文件
func Close() error {
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil || defaultLogger.rotator == nil {
		return nil
	}
	return defaultLogger.rotator.Close()
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func Infof(format string, args ...any) {
	l := current()
	l.console.Infof(format, args...)
	l.file.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	l := current()
	l.console.Warnf(format, args...)
	l.file.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	l := current()
	l.console.Errorf(format, args...)
	l.file.Errorf(format, args...)
}

// Fatalf 先写入文件再退出进程
func Fatalf(format string, args ...any) {
	l := current()
	l.file.Errorf(format, args...)
	l.console.Fatalf(format, args...)
}

func Debugf(format string, args ...any) {
	l := current()
	l.console.Debugf(format, args...)
	l.file.Debugf(format, args...)
}
