package orchestrator

import (
	"encoding/json"
	"time"

	"slotwatch/internal/portal"
)

type Status string

const (
	StatusPaused             Status = "paused"
	StatusAccountSwitched    Status = "account_switched"
	StatusAllAccountsLimited Status = "all_accounts_limited"
	StatusSuccess            Status = "success"
	StatusNoChange           Status = "no_change"
	StatusTemporaryError     Status = "temporary_error"
	StatusError              Status = "error"
)

// Result is the terminal outcome of one cycle. It is also the JSON body of the
// manual trigger.
type Result struct {
	Status  Status        `json:"status"`
	Message string        `json:"message"`
	Date    string        `json:"date,omitempty"`
	Slots   []portal.Slot `json:"slots,omitempty"`
	Account string        `json:"account,omitempty"`
	Data    any           `json:"data,omitempty"`
	CycleID string        `json:"cycle_id,omitempty"`

	AccountIndex int           `json:"-"`
	Duration     time.Duration `json:"-"`
}

// diagnostic turns a raw payload into JSON when it is JSON, text otherwise.
func diagnostic(payload string) any {
	if payload == "" {
		return nil
	}
	if json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}
	return payload
}
