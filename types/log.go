package types

import "time"

// LogEntry carries one HTTP request/response pair to the async logger.
type LogEntry struct {
	Method          string
	URL             string
	RequestBody     string
	RequestHeaders  string
	ResponseBody    string
	ResponseHeaders string
	StatusCode      int
	CreatedAt       time.Time
}
