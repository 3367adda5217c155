package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	outputMu sync.Mutex
	output   io.Writer = os.Stderr
)

// SetOutput redirects all log output to w and returns the previous writer.
// The terminal UI owns stdout, so the default is stderr.
func SetOutput(w io.Writer) io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()
	prev := output
	output = w
	return prev
}

// writeLog formats one line and writes it to the configured output.
//
//	[2024-01-01T00:00:00Z] [INFO] dispatch: entry dispatched | command=say queued=2
func (l *Logger) writeLog(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", GetTimestamp(), level, l.name, msg)

	if len(fields) > 0 {
		b.WriteString(" |")
		for _, k := range sortedKeys(fields) {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	outputMu.Lock()
	defer outputMu.Unlock()
	_, _ = io.WriteString(output, b.String())
}

// mergeFields layers context fields, logger fields and call fields, in
// increasing priority. Returns nil when there is nothing to add.
func (l *Logger) mergeFields(fields []LogField) map[string]interface{} {
	contextFields := extractContextFields(l.ctx)
	if contextFields == nil && len(l.fields) == 0 && len(fields) == 0 {
		return nil
	}

	merged := make(map[string]interface{}, len(contextFields)+len(l.fields)+len(fields))
	for k, v := range contextFields {
		merged[k] = v
	}
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return merged
}

// GetTimestamp returns an RFC3339 timestamp. LOG_TIMESTAMP overrides it
// for deterministic test output.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}

func sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
