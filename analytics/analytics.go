package analytics

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"

// CommandDataCollector receives one record per processed command.
type CommandDataCollector interface {
	RecordCommandSuccess(processName string, executionId string, command string, pointerId string, data map[string]any)
	RecordCommandFailure(processName string, executionId string, command string, pointerId string, code string, reason string)
	Close() error
}

var commandCollector CommandDataCollector = noopDataCollector{}

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		SetDataCollector(c)
	default:
		SetDataCollector(noopDataCollector{})
	}
	return nil
}

func SetDataCollector(c CommandDataCollector) {
	commandCollector = c
}

func Close() error {
	return commandCollector.Close()
}

func RecordCommandSuccess(processName string, executionId string, command string, pointerId string, data map[string]any) {
	commandCollector.RecordCommandSuccess(processName, executionId, command, pointerId, data)
}

func RecordCommandFailure(processName string, executionId string, command string, pointerId string, code string, reason string) {
	commandCollector.RecordCommandFailure(processName, executionId, command, pointerId, code, reason)
}

type noopDataCollector struct{}

func (noopDataCollector) RecordCommandSuccess(string, string, string, string, map[string]any) {}
func (noopDataCollector) RecordCommandFailure(string, string, string, string, string, string) {}
func (noopDataCollector) Close() error                                                       { return nil }
