package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	file     *os.File
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		file:     logFile,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileDataCollector) RecordCommandSuccess(processName string, executionId string, command string, pointerId string, data map[string]any) {
	lc.logger.Info("success", zap.String("process", processName), zap.String("execution", executionId), zap.String("command", command), zap.String("pointer", pointerId), zap.Any("data", data))
}

func (lc *LogFileDataCollector) RecordCommandFailure(processName string, executionId string, command string, pointerId string, code string, reason string) {
	lc.logger.Info("failure", zap.String("process", processName), zap.String("execution", executionId), zap.String("command", command), zap.String("pointer", pointerId), zap.String("code", code), zap.String("reason", reason))
}

func (lc *LogFileDataCollector) Close() error {
	_ = lc.logger.Sync()
	return lc.file.Close()
}
