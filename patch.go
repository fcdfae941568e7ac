package discipline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// patch builds the JSON body of a partial update, keeping the fields in the
// order they are set. Its zero value is an empty patch.
type patch struct {
	keys   []string
	values []json.RawMessage
	err    error
}

// Set adds key to the patch, even if value is zero.
func (p *patch) Set(key string, value any) {
	if p.err != nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		p.err = fmt.Errorf("cannot encode %q: %w", key, err)
		return
	}
	p.keys = append(p.keys, key)
	p.values = append(p.values, data)
}

// SetIf adds key unless value is the zero value of its type. A nil pointer
// means unchanged, a pointer to zero is a change to zero.
func (p *patch) SetIf(key string, value any) {
	if v := reflect.ValueOf(value); v.IsValid() && !v.IsZero() {
		p.Set(key, value)
	}
}

// Len is the number of fields in the patch.
func (p *patch) Len() int { return len(p.keys) }

func (p *patch) MarshalJSON() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		b.Write(key)
		b.WriteByte(':')
		b.Write(p.values[i])
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
