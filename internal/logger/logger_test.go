package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fachebot/oneline/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupForTest(t *testing.T, c *config.Log) {
	t.Helper()
	old := current()
	t.Cleanup(func() {
		_ = Close()
		mu.Lock()
		defaultLogger = old
		mu.Unlock()
	})
	require.NoError(t, Setup(c))
}

func TestSetup(t *testing.T) {
	t.Run("控制台和文件按各自级别输出", func(t *testing.T) {
		dir := t.TempDir()
		setupForTest(t, &config.Log{Level: "warn", FileLevel: "debug", Dir: dir, MaxSize: 1})

		l := current()
		assert.Equal(t, logrus.WarnLevel, l.console.GetLevel())
		assert.Equal(t, logrus.DebugLevel, l.file.GetLevel())

		Debugf("调试信息 %d", 1)
		Infof("普通信息")

		data, err := os.ReadFile(filepath.Join(dir, "oneline.log"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "调试信息 1")
		assert.Contains(t, string(data), "普通信息")
	})

	t.Run("文件级别过滤低级别日志", func(t *testing.T) {
		dir := t.TempDir()
		setupForTest(t, &config.Log{Level: "debug", FileLevel: "warn", Dir: dir, MaxSize: 1})

		Infof("不应写入文件")
		Warnf("写入文件的警告")

		data, err := os.ReadFile(filepath.Join(dir, "oneline.log"))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "不应写入文件")
		assert.Contains(t, string(data), "写入文件的警告")
	})

	t.Run("级别非法时保留原日志", func(t *testing.T) {
		old := current()
		err := Setup(&config.Log{Level: "verbose", FileLevel: "info", Dir: t.TempDir()})
		require.Error(t, err)
		assert.Same(t, old, current())
	})
}
