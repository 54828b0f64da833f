// Package reasons holds the externally managed catalog of deferral
// reason codes. Every SHIFT must carry a code the catalog knows.
package reasons

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/linnemanlabs/go-core/xerrors"
)

// ErrUnknownCode rejects a reason code absent from the catalog.
var ErrUnknownCode = xerrors.New("unknown reason code")

// Code is one catalog entry. CarryForward marks deferrals that re-enter
// the next business day's evaluation when the current day closes.
type Code struct {
	Code         string `json:"code"`
	Label        string `json:"label"`
	CarryForward bool   `json:"carry_forward,omitempty"`
}

// Catalog is the reason-code collaborator.
type Catalog interface {
	List(ctx context.Context) ([]Code, error)
	Validate(ctx context.Context, code string) error
}

// Memory is an in-process Catalog.
type Memory struct {
	mu    sync.RWMutex
	codes []Code
	index map[string]int
}

// NewMemory builds a Memory catalog from the given codes.
func NewMemory(codes []Code) *Memory {
	m := &Memory{
		codes: append([]Code(nil), codes...),
		index: make(map[string]int, len(codes)),
	}
	for i, c := range m.codes {
		m.index[c.Code] = i
	}
	return m
}

// LoadFile reads a catalog from a JSON file: an array of Code objects.
// Wards maintain their own deferral vocabularies, so deployments point
// this at an ops-managed file instead of the built-in defaults.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("read reason catalog: %w", err)
	}
	var codes []Code
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("parse reason catalog %s: %w", path, err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("reason catalog %s is empty", path)
	}
	for i, c := range codes {
		if c.Code == "" || c.Label == "" {
			return nil, fmt.Errorf("reason catalog %s: entry %d missing code or label", path, i)
		}
	}
	return NewMemory(codes), nil
}

// Defaults is the built-in catalog used when no external one is wired.
func Defaults() *Memory {
	return NewMemory([]Code{
		{Code: "await_results", Label: "Awaiting pending results"},
		{Code: "patient_absent", Label: "Patient not on ward"},
		{Code: "remind_tomorrow", Label: "Remind tomorrow", CarryForward: true},
		{Code: "escalated", Label: "Escalated to physician"},
	})
}

// List implements Catalog.
func (m *Memory) List(_ context.Context) ([]Code, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Code(nil), m.codes...), nil
}

// Validate implements Catalog.
func (m *Memory) Validate(_ context.Context, code string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.index[code]; !ok {
		return ErrUnknownCode
	}
	return nil
}

// Get returns the entry for code, if present.
func (m *Memory) Get(code string) (Code, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[code]
	if !ok {
		return Code{}, false
	}
	return m.codes[i], true
}
