// Package logging emits structured JSON log lines. Every entry carries a
// level, an RFC3339 timestamp and a message; callers attach context through
// the Fields map.
package logging

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

type Fields map[string]interface{}

func emit(level, msg string, err error, fields Fields) {
	entry := Fields{}
	for k, v := range fields {
		entry[k] = v
	}
	entry["level"] = level
	entry["ts"] = time.Now().UTC().Format(time.RFC3339)
	entry["msg"] = msg
	if err != nil {
		entry["error"] = err.Error()
	}
	b, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		// fallback to plain logging
		log.Printf("%s: %s (%v)\n", level, msg, entry)
		return
	}
	log.Println(string(b))
}

// Info logs an informational message with optional fields.
func Info(msg string, fields Fields) {
	emit("info", msg, nil, fields)
}

// Warn logs a warning. Used for degraded-but-tolerated conditions such as a
// failed authoritative write whose optimistic value stays visible locally.
func Warn(msg string, fields Fields) {
	emit("warn", msg, nil, fields)
}

// Error logs an error message and includes the error text in the fields.
func Error(msg string, err error, fields Fields) {
	emit("error", msg, err, fields)
}

// Fatal logs a fatal error and exits the process.
func Fatal(msg string, err error, fields Fields) {
	emit("fatal", msg, err, fields)
	os.Exit(1)
}
