package job

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BoolOrInt models the retry/backtrace fields, which the wire format
// allows to be either a bool or an integer. Decoding never loses which
// shape was on the wire, so re-encoding an untouched job stays canonical.
type BoolOrInt struct {
	IsInt  bool
	IntVal int
	Bool   bool
}

func (b *BoolOrInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("job: empty bool-or-int value")
	}
	if trimmed[0] == 't' || trimmed[0] == 'f' {
		var v bool
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		b.Bool = v
		b.IsInt = false
		return nil
	}
	var n int
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("job: retry/backtrace value is neither bool nor int: %w", err)
	}
	b.IntVal = n
	b.IsInt = true
	return nil
}

func (b BoolOrInt) MarshalJSON() ([]byte, error) {
	if b.IsInt {
		return json.Marshal(b.IntVal)
	}
	return json.Marshal(b.Bool)
}

// MaxRetries implements retries(job.retry) from the spec: true->25, false/absent->0, int n->n.
func (b *BoolOrInt) MaxRetries() int {
	if b == nil {
		return 0
	}
	if b.IsInt {
		return b.IntVal
	}
	if b.Bool {
		return 25
	}
	return 0
}

// MaxBacktrace implements traces(job.backtrace): true->1000, false/absent->0, int n->n.
func (b *BoolOrInt) MaxBacktrace() int {
	if b == nil {
		return 0
	}
	if b.IsInt {
		return b.IntVal
	}
	if b.Bool {
		return 1000
	}
	return 0
}
