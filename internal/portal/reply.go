package portal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

const StatusOK = "OK"

// Reply is the JSON envelope the portal answers with.
//
//	{"status":"OK","data":{"day":"15-10-2025","slots":[...]}}
//	{"status":"ERROR","error":"..."}
type Reply struct {
	Status  string          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	RawData json.RawMessage `json:"data,omitempty"`

	// Data is decoded from RawData when it is an object.
	Data *DayData `json:"-"`
	// Raw is the undecoded body.
	Raw []byte `json:"-"`
}

type DayData struct {
	Day   string `json:"day"`
	Slots []Slot `json:"slots"`
}

// Slot is one open time. The portal sends either a scalar or an object with a
// "value" key; both end up in Value.
type Slot struct {
	Value string
	Raw   json.RawMessage
}

func (s *Slot) UnmarshalJSON(b []byte) error {
	s.Raw = append(s.Raw[:0], b...)
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		var obj map[string]any
		if err := sonic.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		if v, ok := obj["value"]; ok && v != nil {
			s.Value = fmt.Sprint(v)
		}
		return nil
	}
	var v any
	if err := sonic.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	if v != nil {
		s.Value = fmt.Sprint(v)
	}
	return nil
}

func (s Slot) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return sonic.Marshal(s.Value)
}

// Day returns the returned day, or "" when the reply has none.
func (r *Reply) Day() string {
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data.Day
}

// FirstSlot returns the first slot's value or "N/A".
func (r *Reply) FirstSlot() string {
	if r == nil || r.Data == nil || len(r.Data.Slots) == 0 || r.Data.Slots[0].Value == "" {
		return "N/A"
	}
	return r.Data.Slots[0].Value
}

func (r *Reply) SlotCount() int {
	if r == nil || r.Data == nil {
		return 0
	}
	return len(r.Data.Slots)
}

// ParseReply parses body into a Reply. data is decoded only when it is a JSON object.
func ParseReply(body []byte) (*Reply, error) {
	var r Reply
	if err := sonic.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	r.Raw = body
	raw := bytes.TrimSpace(r.RawData)
	if len(raw) > 0 && raw[0] == '{' {
		var d DayData
		if err := sonic.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		r.Data = &d
	}
	return &r, nil
}
