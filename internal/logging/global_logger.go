package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  io.Writer
	ginErrorWriter io.Writer
)

// SetupBaseLogger wires the default logger and redirects gin's writers
// through it. Safe to call multiple times.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		SetOutput(os.Stdout)
		SetLevel(slog.LevelInfo)
		SetReportCaller(true)

		gin.SetMode(gin.ReleaseMode)

		ginInfoWriter = Writer()
		gin.DefaultWriter = ginInfoWriter
		ginErrorWriter = WriterLevel(slog.LevelError)
		gin.DefaultErrorWriter = ginErrorWriter
		gin.DebugPrintFunc = func(format string, values ...any) {
			Debugf(format, values...)
		}

		RegisterExitHandler(closeLogOutputs)
	})
}

// ConfigureLogOutput switches between stdout and a rotating file under logs/.
func ConfigureLogOutput(loggingToFile bool) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	if loggingToFile {
		logDir := "logs"
		if base := writablePath(); base != "" {
			logDir = filepath.Join(base, "logs")
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		if logWriter != nil {
			_ = logWriter.Close()
		}
		logWriter = &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "inboxmux.log"),
			MaxSize:    10,
			MaxBackups: 0,
			MaxAge:     0,
			Compress:   false,
		}
		SetOutput(logWriter)
		return nil
	}

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	SetOutput(os.Stdout)
	return nil
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
}
