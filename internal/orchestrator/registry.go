package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"slotwatch/internal/apperr"
	"slotwatch/internal/portal"
)

var ErrNoAccounts = errors.New("no accounts configured")

// Account is one portal login. Identity is psn + "_" + phone.
type Account struct {
	Index       int
	Identity    string
	Credentials portal.Credentials
}

// Registry is the fixed, ordered account set. It is read-only after construction.
type Registry struct {
	accounts []Account
}

func NewRegistry(creds []portal.Credentials) (*Registry, error) {
	if len(creds) == 0 {
		return nil, apperr.Wrap(apperr.KindConfig, "registry", "load accounts", ErrNoAccounts)
	}
	out := make([]Account, 0, len(creds))
	seen := make(map[string]int, len(creds))
	for i, c := range creds {
		c.PSN = strings.TrimSpace(c.PSN)
		c.Phone = strings.TrimSpace(c.Phone)
		if c.PSN == "" || c.Phone == "" {
			return nil, apperr.New(apperr.KindConfig, "registry", fmt.Sprintf("account %d: psn and phone_number are required", i+1))
		}
		id := c.PSN + "_" + c.Phone
		if prev, dup := seen[id]; dup {
			return nil, apperr.New(apperr.KindConfig, "registry", fmt.Sprintf("account %d duplicates account %d", i+1, prev+1))
		}
		seen[id] = i
		out = append(out, Account{Index: i, Identity: id, Credentials: c})
	}
	return &Registry{accounts: out}, nil
}

func (r *Registry) Count() int { return len(r.accounts) }

func (r *Registry) Get(i int) Account { return r.accounts[i] }

func (r *Registry) Identity(i int) string { return r.accounts[i].Identity }

// Valid reports whether i is an account index.
func (r *Registry) Valid(i int) bool { return i >= 0 && i < len(r.accounts) }

// Label is the operator-facing name: 1-based number plus masked phone.
func (r *Registry) Label(i int) string {
	return fmt.Sprintf("#%d (%s)", i+1, MaskPhone(r.accounts[i].Credentials.Phone))
}

// MaskPhone keeps the last three digits.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 3 {
		return "***"
	}
	return "***" + phone[len(phone)-3:]
}
