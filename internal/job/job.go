// Package job models the queued work unit this server fetches, executes,
// and (on failure) re-serializes into the retry or dead sorted sets.
package job

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeError wraps a malformed payload. Processors log it and discard
// the payload rather than treating it as a retryable handler failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("job: decode: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Job is the in-memory representation of a queued job record. Fields not
// recognized by this schema still round-trip, because Encode replays the
// original top-level key order and byte content for any field this type
// never had reason to touch.
type Job struct {
	JID            string
	Klass          string
	Args           []Arg
	Queue          string
	Retry          *BoolOrInt
	Backtrace      *BoolOrInt
	RetryCount     *int
	FailedAt       *float64
	RetriedAt      *float64
	ErrorMessage   string
	ErrorClass     string
	ErrorBacktrace []string
	Dead           *bool

	order  []string
	fields map[string]json.RawMessage
}

// Decode parses a wire payload into a Job, preserving unknown fields and
// the original top-level key order for a later canonical Encode.
func Decode(payload []byte) (*Job, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, &DecodeError{Err: err}
	}
	order, err := orderedTopLevelKeys(payload)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	j := &Job{fields: fields, order: order, Queue: "default"}

	if raw, ok := fields["jid"]; ok {
		_ = json.Unmarshal(raw, &j.JID)
	}
	if raw, ok := fields["klass"]; ok {
		_ = json.Unmarshal(raw, &j.Klass)
	}
	if raw, ok := fields["queue"]; ok {
		var q string
		if err := json.Unmarshal(raw, &q); err == nil && q != "" {
			j.Queue = q
		}
	}
	if raw, ok := fields["args"]; ok {
		args, err := parseArgs(raw)
		if err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("args: %w", err)}
		}
		j.Args = args
	}
	if raw, ok := fields["retry"]; ok {
		var b BoolOrInt
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("retry: %w", err)}
		}
		j.Retry = &b
	}
	if raw, ok := fields["backtrace"]; ok {
		var b BoolOrInt
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("backtrace: %w", err)}
		}
		j.Backtrace = &b
	}
	if raw, ok := fields["retry_count"]; ok {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("retry_count: %w", err)}
		}
		j.RetryCount = &n
	}
	if raw, ok := fields["failed_at"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			j.FailedAt = &f
		}
	}
	if raw, ok := fields["retried_at"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			j.RetriedAt = &f
		}
	}
	if raw, ok := fields["error_message"]; ok {
		_ = json.Unmarshal(raw, &j.ErrorMessage)
	}
	if raw, ok := fields["error_class"]; ok {
		_ = json.Unmarshal(raw, &j.ErrorClass)
	}
	if raw, ok := fields["error_backtrace"]; ok {
		_ = json.Unmarshal(raw, &j.ErrorBacktrace)
	}
	if raw, ok := fields["dead"]; ok {
		var d bool
		if err := json.Unmarshal(raw, &d); err == nil {
			j.Dead = &d
		}
	}

	return j, nil
}

// Encode reproduces the job's wire payload. Fields never touched by
// bookkeeping are emitted with their exact original bytes and in their
// original position; fields written for the first time by retry
// bookkeeping are appended in a fixed order.
func (j *Job) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range j.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(j.fields[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// syncBookkeepingFields rewrites the raw bytes for the retry/failure
// bookkeeping fields from the typed values, appending any that were
// absent from the original payload. Called by the Retry middleware
// after it mutates a Job in place.
func (j *Job) syncBookkeepingFields() error {
	set := func(name string, present bool, v interface{}) error {
		if !present {
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("job: encode %s: %w", name, err)
		}
		if _, exists := j.fields[name]; !exists {
			j.order = append(j.order, name)
		}
		j.fields[name] = raw
		return nil
	}

	if err := set("failed_at", j.FailedAt != nil, j.FailedAt); err != nil {
		return err
	}
	if err := set("retried_at", j.RetriedAt != nil, j.RetriedAt); err != nil {
		return err
	}
	if err := set("retry_count", j.RetryCount != nil, j.RetryCount); err != nil {
		return err
	}
	if err := set("error_class", j.ErrorClass != "", j.ErrorClass); err != nil {
		return err
	}
	if err := set("error_message", j.ErrorMessage != "", j.ErrorMessage); err != nil {
		return err
	}
	if err := set("error_backtrace", len(j.ErrorBacktrace) > 0, j.ErrorBacktrace); err != nil {
		return err
	}
	return nil
}

// SyncBookkeepingFields exposes syncBookkeepingFields to other packages
// in this module (notably retry) without widening the Job API surface
// for ordinary callers.
func (j *Job) SyncBookkeepingFields() error { return j.syncBookkeepingFields() }

func orderedTopLevelKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("job: payload is not a JSON object")
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("job: unexpected non-string key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
