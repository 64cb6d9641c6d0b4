package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorKind classifies why a probe could not produce its payload.
type ErrorKind string

const (
	// KindTimeout means the probe or one of its calls ran out of time.
	KindTimeout ErrorKind = "timeout"
	// KindNetworkUnavailable means the site could not be reached.
	KindNetworkUnavailable ErrorKind = "network_unavailable"
	// KindToolMissing means a required external program is not installed.
	KindToolMissing ErrorKind = "tool_missing"
	// KindParseFailure means a response or file could not be understood.
	KindParseFailure ErrorKind = "parse_failure"
	// KindNotFound means a required resource does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindDisabled means the probe was not enabled for this run.
	KindDisabled ErrorKind = "disabled"
	// KindInternal means the probe itself broke, for example by panicking.
	KindInternal ErrorKind = "internal"
)

// Failure is the error half of a Result.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements error, so a Failure can travel through error returns
// and be recovered by Classify.
func (f Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Message
}

// Result is either Ok with a payload or Failed with a Failure; never both.
// The zero Result is Ok with a zero payload.
type Result[T any] struct {
	value   T
	failure *Failure
}

// Ok returns a successful result.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail returns a failed result. The payload is always the zero value.
func Fail[T any](kind ErrorKind, format string, args ...any) Result[T] {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return Result[T]{failure: &Failure{Kind: kind, Message: msg}}
}

// FailErr returns a failed result classified from err.
func FailErr[T any](err error) Result[T] {
	return Result[T]{failure: &Failure{Kind: Classify(err), Message: err.Error()}}
}

// IsOk reports whether the result carries a payload.
func (r Result[T]) IsOk() bool {
	return r.failure == nil
}

// Value returns the payload and true, or the zero value and false.
func (r Result[T]) Value() (T, bool) {
	if r.failure != nil {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Failure returns the failure and true, or a zero Failure and false.
func (r Result[T]) Failure() (Failure, bool) {
	if r.failure == nil {
		return Failure{}, false
	}
	return *r.failure, true
}

// Match calls exactly one of ok or failed.
func Match[T, R any](r Result[T], ok func(T) R, failed func(Failure) R) R {
	if r.failure != nil {
		return failed(*r.failure)
	}
	return ok(r.value)
}

type resultJSON[T any] struct {
	Status string   `json:"status"`
	Data   *T       `json:"data,omitempty"`
	Error  *Failure `json:"error,omitempty"`
}

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// MarshalJSON encodes {"status":"ok","data":...} or
// {"status":"failed","error":{"kind":...,"message":...}}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.failure != nil {
		return json.Marshal(resultJSON[T]{Status: statusFailed, Error: r.failure})
	}
	v := r.value
	return json.Marshal(resultJSON[T]{Status: statusOK, Data: &v})
}

// UnmarshalJSON decodes the MarshalJSON form.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *Failure        `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case statusOK:
		var v T
		if len(raw.Data) > 0 && !bytes.Equal(raw.Data, []byte("null")) {
			if err := json.Unmarshal(raw.Data, &v); err != nil {
				return err
			}
		}
		*r = Ok(v)
	case statusFailed:
		if raw.Error == nil {
			return fmt.Errorf("probe: failed result without error")
		}
		*r = Result[T]{failure: raw.Error}
	default:
		return fmt.Errorf("probe: unknown result status %q", raw.Status)
	}
	return nil
}
