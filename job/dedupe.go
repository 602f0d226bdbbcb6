package job

import (
	"bytes"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DedupeKey returns the md5 hex digest of the canonical JSON form of
// {"args", "func", "kwargs"}. Object keys are sorted at every depth, so two
// calls with the same function and arguments always produce the same key
// regardless of field order in the caller's payload.
func DedupeKey(function string, args []any, kwargs json.RawMessage) (string, error) {
	if args == nil {
		args = []any{}
	}

	var kw any = map[string]any{}
	if len(bytes.TrimSpace(kwargs)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(kwargs))
		dec.UseNumber()
		if err := dec.Decode(&kw); err != nil {
			return "", fmt.Errorf("dedupe key for %q: decode kwargs: %w", function, err)
		}
	}

	// encoding/json writes map keys in sorted order.
	canonical, err := json.Marshal(map[string]any{
		"func":   function,
		"args":   args,
		"kwargs": kw,
	})
	if err != nil {
		return "", fmt.Errorf("dedupe key for %q: %w", function, err)
	}

	sum := md5.Sum(canonical) //nolint:gosec // see import
	return hex.EncodeToString(sum[:]), nil
}

// Bind folds positional args into the kwargs object using the ordered
// parameter names, so handlers always decode a single keyed payload. A
// positional arg must not also appear as a keyword.
func (c Call) Bind(params []string) (json.RawMessage, error) {
	if len(c.Args) == 0 {
		if len(c.Kwargs) == 0 {
			return json.RawMessage("{}"), nil
		}
		return c.Kwargs, nil
	}
	if len(c.Args) > len(params) {
		return nil, fmt.Errorf("%s: takes %d positional arguments but %d were given",
			c.Function, len(params), len(c.Args))
	}

	merged := map[string]json.RawMessage{}
	if len(c.Kwargs) > 0 {
		if err := json.Unmarshal(c.Kwargs, &merged); err != nil {
			return nil, fmt.Errorf("%s: kwargs must be an object: %w", c.Function, err)
		}
	}
	for i, arg := range c.Args {
		name := params[i]
		if _, dup := merged[name]; dup {
			return nil, fmt.Errorf("%s: got multiple values for argument %q", c.Function, name)
		}
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: encode argument %q: %w", c.Function, name, err)
		}
		merged[name] = raw
	}
	return json.Marshal(merged)
}
