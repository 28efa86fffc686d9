package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error is a non-2xx answer from the game API.
type Error struct {
	Operation  string
	StatusCode int
	Code       int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: api returned %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: api returned %d (code %d): %s", e.Operation, e.StatusCode, e.Code, e.Message)
}

type errorEnvelope struct {
	Error struct {
		Message string          `json:"message"`
		Code    int             `json:"code"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

// rateLimitData is the data block of a 429 answer.
type rateLimitData struct {
	RetryAfter float64 `json:"retryAfter"`
}

func parseError(op string, status int, body []byte) (*Error, time.Duration) {
	e := &Error{Operation: op, StatusCode: status}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		e.Message = string(body)
		return e, 0
	}
	e.Message = env.Error.Message
	e.Code = env.Error.Code

	var retry time.Duration
	if len(env.Error.Data) > 0 {
		var rl rateLimitData
		if json.Unmarshal(env.Error.Data, &rl) == nil && rl.RetryAfter > 0 {
			retry = time.Duration(rl.RetryAfter * float64(time.Second))
		}
	}
	return e, retry
}
