package domain

import "time"

// Response is a successful upstream response
type Response struct {
	Data        []byte
	StatusCode  int
	ContentType string
	QueriedAt   time.Time
}
