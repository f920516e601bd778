package kvstore

// Fields carries structured key/value pairs for a log line.
type Fields map[string]any

// Logger is the leveled logger the store and bundled backends write to.
// Adapters for zap, logrus and slog live under log/.
// A nil Logger in Options selects NopLogger.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
