package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/julianstephens/qada/internal/models"
)

// outboxFile is the on-disk format of the outbox spool.
type outboxFile struct {
	Version int                  `json:"version"`
	Entries []models.LedgerEntry `json:"entries"`
}

// Outbox is a JSON spool of ledger entries that were applied locally but
// could not be written to the durable store. Entries keep their IDs, so
// flushing the same entry twice is harmless. Entries the store refuses for
// good are moved to a second file next to the spool.
type Outbox struct {
	mu           sync.Mutex
	path         string
	rejectedPath string
}

// AppendFunc writes a batch of entries for one account.
type AppendFunc func(ctx context.Context, accountID string, entries []models.LedgerEntry) error

// FlushResult counts what a Flush did with the spooled entries.
type FlushResult struct {
	Flushed  int
	Rejected int
	// RejectErr is the first permanent failure, set when Rejected > 0
	RejectErr error
}

func NewOutbox(path string) *Outbox {
	ext := filepath.Ext(path)
	return &Outbox{
		path:         path,
		rejectedPath: strings.TrimSuffix(path, ext) + ".rejected" + ext,
	}
}

func (o *Outbox) Path() string {
	return o.path
}

// RejectedPath is where entries the store refused for good are kept.
func (o *Outbox) RejectedPath() string {
	return o.rejectedPath
}

// Push spools entries after any already pending.
func (o *Outbox) Push(entries ...models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	pending, err := readEntries(o.path)
	if err != nil {
		return err
	}
	return writeEntries(o.path, append(pending, entries...))
}

// Pending returns the spooled entries in the order they were pushed.
func (o *Outbox) Pending() ([]models.LedgerEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return readEntries(o.path)
}

// Len returns the number of spooled entries.
func (o *Outbox) Len() (int, error) {
	pending, err := o.Pending()
	return len(pending), err
}

// Flush hands the spooled entries of each account to fn, in push order.
// Entries are removed once fn accepts them. A run that fails with a
// permanent error (see IsPermanent) is moved to the rejected file and the
// flush goes on with the next run; any other failure stops the flush,
// leaving that run and the rest spooled.
func (o *Outbox) Flush(ctx context.Context, fn AppendFunc) (FlushResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var res FlushResult
	pending, err := readEntries(o.path)
	if err != nil || len(pending) == 0 {
		return res, err
	}

	remaining := pending
	for len(remaining) > 0 {
		// Take the leading run of entries for one account
		account := remaining[0].AccountID
		n := 1
		for n < len(remaining) && remaining[n].AccountID == account {
			n++
		}
		run := remaining[:n]

		err := fn(ctx, account, run)
		switch {
		case err == nil:
			res.Flushed += n
		case IsPermanent(err):
			if rerr := o.reject(run); rerr != nil {
				return res, o.keep(remaining, fmt.Errorf("failed to set aside rejected entries: %w", rerr))
			}
			res.Rejected += n
			if res.RejectErr == nil {
				res.RejectErr = fmt.Errorf("account %s: %w", account, err)
			}
		default:
			return res, o.keep(remaining, fmt.Errorf("failed to flush outbox for account %s: %w", account, err))
		}
		remaining = remaining[n:]
	}

	if err := writeEntries(o.path, nil); err != nil {
		return res, err
	}
	return res, nil
}

// keep rewrites the spool to remaining and returns cause, or the write
// error wrapped around it.
func (o *Outbox) keep(remaining []models.LedgerEntry, cause error) error {
	if werr := writeEntries(o.path, remaining); werr != nil {
		return fmt.Errorf("failed to rewrite outbox after %v: %w", cause, werr)
	}
	return cause
}

func (o *Outbox) reject(entries []models.LedgerEntry) error {
	rejected, err := readEntries(o.rejectedPath)
	if err != nil {
		return err
	}
	return writeEntries(o.rejectedPath, append(rejected, entries...))
}

// Rejected returns the entries the store refused for good, oldest first.
func (o *Outbox) Rejected() ([]models.LedgerEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return readEntries(o.rejectedPath)
}

// Discard drops every spooled entry of accountID, e.g. after its ledger was wiped.
func (o *Outbox) Discard(accountID string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending, err := readEntries(o.path)
	if err != nil {
		return 0, err
	}
	kept := pending[:0]
	for _, e := range pending {
		if e.AccountID != accountID {
			kept = append(kept, e)
		}
	}
	dropped := len(pending) - len(kept)
	if dropped == 0 {
		return 0, nil
	}
	return dropped, writeEntries(o.path, kept)
}

func readEntries(path string) ([]models.LedgerEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var f outboxFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse outbox: %w", err)
	}
	return f.Entries, nil
}

func writeEntries(path string, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear outbox: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create outbox directory: %w", err)
	}
	data, err := json.MarshalIndent(outboxFile{Version: 1, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize outbox: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves half a spool
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write outbox: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write outbox: %w", err)
	}
	return nil
}
