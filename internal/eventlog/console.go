package eventlog

import (
	"github.com/charmbracelet/log"
)

// ConsoleObserver renders events with charmbracelet/log, one of the
// teacher's go.mod dependencies never exercised by the copied sources;
// here it is the renderer for the observer boundary the redesign note
// calls for, replacing the old text_color_set/dw_printf console path.
type ConsoleObserver struct {
	logger *log.Logger
}

func NewConsoleObserver(logger *log.Logger) *ConsoleObserver {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsoleObserver{logger: logger}
}

func (c *ConsoleObserver) OnEvent(e Event) {
	fields := make([]any, 0, len(e.Fields)*2+2)
	fields = append(fields, "category", string(e.Category))
	for k, v := range e.Fields {
		fields = append(fields, k, v)
	}

	switch e.Category {
	case Error:
		c.logger.Error(e.Text, fields...)
	case Warning:
		c.logger.Warn(e.Text, fields...)
	case Progress, Control, Packet:
		c.logger.Debug(e.Text, fields...)
	default:
		c.logger.Info(e.Text, fields...)
	}
}
