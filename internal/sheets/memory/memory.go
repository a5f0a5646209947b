// Package memory is an in-process DraftArchiver for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kindlecrm/internal/core"
	ports "kindlecrm/internal/sheets"
)

var _ ports.DraftArchiver = (*Archiver)(nil)

type Archiver struct {
	mu   sync.Mutex
	rows [][]any
	// FailWith, when set, makes every ArchiveDraft call fail.
	FailWith error
}

func New() *Archiver {
	return &Archiver{}
}

func (a *Archiver) ArchiveDraft(ctx context.Context, d core.Draft) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.ID == 0 {
		return "", errors.New("draft has no id")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWith != nil {
		return "", a.FailWith
	}
	a.rows = append(a.rows, ports.Row(d))
	return fmt.Sprintf("mem:%d", len(a.rows)), nil
}

// Rows returns a copy of the archived rows.
func (a *Archiver) Rows() [][]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]any, len(a.rows))
	copy(out, a.rows)
	return out
}

// SetFailure switches failure injection on (err != nil) or off.
func (a *Archiver) SetFailure(err error) {
	a.mu.Lock()
	a.FailWith = err
	a.mu.Unlock()
}
