package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
)

func testEntry(id, account string, amount int) models.LedgerEntry {
	return models.LedgerEntry{
		ID:        id,
		AccountID: account,
		Category:  models.Fajr,
		Amount:    amount,
		Kind:      constants.EntryKindQada,
		LocalDate: "2024-06-01",
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOutboxPushAndPending(t *testing.T) {
	ob := NewOutbox(filepath.Join(t.TempDir(), "spool", "outbox.json"))

	if n, err := ob.Len(); err != nil || n != 0 {
		t.Fatalf("empty outbox Len() = %d, %v", n, err)
	}

	if err := ob.Push(testEntry("a", "acct", 1), testEntry("b", "acct", -1)); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := ob.Push(testEntry("c", "acct", -1)); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	pending, err := ob.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 3 || pending[0].ID != "a" || pending[2].ID != "c" {
		t.Fatalf("Pending() = %+v", pending)
	}
	if pending[1].Category != models.Fajr || pending[1].Amount != -1 {
		t.Errorf("entry did not round-trip: %+v", pending[1])
	}
}

func TestOutboxFlush(t *testing.T) {
	ob := NewOutbox(filepath.Join(t.TempDir(), "outbox.json"))
	_ = ob.Push(
		testEntry("1", "alice", 5),
		testEntry("2", "alice", -1),
		testEntry("3", "bob", 2),
		testEntry("4", "alice", -1),
	)

	var batches []string
	var total int
	res, err := ob.Flush(context.Background(), func(_ context.Context, account string, entries []models.LedgerEntry) error {
		batches = append(batches, account)
		total += len(entries)
		return nil
	})
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if res.Flushed != 4 || res.Rejected != 0 || total != 4 {
		t.Errorf("flush = %+v (%d delivered), want 4 flushed", res, total)
	}
	// Runs of the same account are batched, but order across accounts is kept
	want := []string{"alice", "bob", "alice"}
	if len(batches) != len(want) {
		t.Fatalf("batches = %v, want %v", batches, want)
	}
	for i := range want {
		if batches[i] != want[i] {
			t.Errorf("batch %d = %s, want %s", i, batches[i], want[i])
		}
	}

	if _, err := os.Stat(ob.Path()); !os.IsNotExist(err) {
		t.Error("outbox file should be removed after a clean flush")
	}
}

func TestOutboxFlushFailureKeepsRemainder(t *testing.T) {
	ob := NewOutbox(filepath.Join(t.TempDir(), "outbox.json"))
	_ = ob.Push(testEntry("1", "alice", 5), testEntry("2", "bob", 1), testEntry("3", "bob", 1))

	boom := errors.New("connection refused")
	res, err := ob.Flush(context.Background(), func(_ context.Context, account string, _ []models.LedgerEntry) error {
		if account == "bob" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Flush() error = %v, want wrapped %v", err, boom)
	}
	if res.Flushed != 1 {
		t.Errorf("flushed = %d, want 1", res.Flushed)
	}

	pending, _ := ob.Pending()
	if len(pending) != 2 || pending[0].ID != "2" {
		t.Errorf("remaining = %+v, want bob's two entries", pending)
	}
}

func TestOutboxFlushSetsAsidePermanentFailures(t *testing.T) {
	ob := NewOutbox(filepath.Join(t.TempDir(), "outbox.json"))
	_ = ob.Push(
		testEntry("1", "ghost", 5),
		testEntry("2", "alice", 1),
		testEntry("3", "bob", 0),
		testEntry("4", "alice", -1),
	)

	var delivered []string
	res, err := ob.Flush(context.Background(), func(_ context.Context, account string, entries []models.LedgerEntry) error {
		switch account {
		case "ghost":
			return fmt.Errorf("%w: ghost", ErrAccountNotFound)
		case "bob":
			return qerrors.NewValidationError("entry", "3 has invalid kind")
		}
		for _, e := range entries {
			delivered = append(delivered, e.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if res.Flushed != 2 || res.Rejected != 2 {
		t.Errorf("flush = %+v, want 2 flushed and 2 rejected", res)
	}
	if !errors.Is(res.RejectErr, ErrAccountNotFound) {
		t.Errorf("RejectErr = %v, want the first rejection", res.RejectErr)
	}
	if len(delivered) != 2 || delivered[0] != "2" || delivered[1] != "4" {
		t.Errorf("delivered = %v, want alice's entries past the rejected runs", delivered)
	}

	if n, _ := ob.Len(); n != 0 {
		t.Errorf("outbox still holds %d entries", n)
	}
	rejected, err := ob.Rejected()
	if err != nil {
		t.Fatalf("Rejected() error = %v", err)
	}
	if len(rejected) != 2 || rejected[0].ID != "1" || rejected[1].ID != "3" {
		t.Errorf("Rejected() = %+v", rejected)
	}
	if filepath.Base(ob.RejectedPath()) != "outbox.rejected.json" {
		t.Errorf("RejectedPath() = %s", ob.RejectedPath())
	}

	// A later flush has nothing left to retry
	calls := 0
	if _, err := ob.Flush(context.Background(), func(context.Context, string, []models.LedgerEntry) error {
		calls++
		return nil
	}); err != nil || calls != 0 {
		t.Errorf("second flush: calls %d, error %v", calls, err)
	}
}

func TestOutboxCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewOutbox(path).Pending(); err == nil {
		t.Error("expected parse error for corrupt outbox")
	}
}

func TestCheckEntries(t *testing.T) {
	good := testEntry("id", "acct", 1)

	tests := []struct {
		name    string
		mutate  func(*models.LedgerEntry)
		wantErr bool
	}{
		{"valid", func(*models.LedgerEntry) {}, false},
		{"no account set", func(e *models.LedgerEntry) { e.AccountID = "" }, false},
		{"missing id", func(e *models.LedgerEntry) { e.ID = "" }, true},
		{"other account", func(e *models.LedgerEntry) { e.AccountID = "other" }, true},
		{"bad category", func(e *models.LedgerEntry) { e.Category = models.Category(7) }, true},
		{"bad kind", func(e *models.LedgerEntry) { e.Kind = "bonus" }, true},
		{"bad quality", func(e *models.LedgerEntry) { e.Quality = 4 }, true},
		{"missing date", func(e *models.LedgerEntry) { e.LocalDate = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := good
			tt.mutate(&e)
			err := CheckEntries("acct", []models.LedgerEntry{e})
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckEntries() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsPermanent(err) {
				t.Errorf("CheckEntries() error = %v, want a permanent error", err)
			}
		})
	}
}

func TestSettingsCodec(t *testing.T) {
	settings := models.DefaultSettings()
	settings.StartDate = "2015-09-01"
	settings.HabitRule = &models.HabitRule{Trigger: "after dhuhr", Action: "one fajr", Active: true}
	settings.Version = 9

	data, err := EncodeSettings(settings)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSettings(data, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 3 {
		t.Errorf("Version = %d, want the column value 3", got.Version)
	}
	if got.StartDate != "2015-09-01" || got.HabitRule == nil || got.HabitRule.Action != "one fajr" {
		t.Errorf("DecodeSettings() = %+v", got)
	}

	// Older documents without capacity or timezone get defaults
	old, err := DecodeSettings([]byte(`{"exemption_days": 5}`), 1)
	if err != nil {
		t.Fatal(err)
	}
	if old.DailyCapacity != constants.DefaultDailyCapacity || old.Timezone != constants.DefaultTimezone || old.ExemptionDays != 5 ||
		old.Madhab != constants.DefaultMadhab {
		t.Errorf("defaults not applied: %+v", old)
	}
}

func TestDeltaFor(t *testing.T) {
	rated := testEntry("x", "a", -1)
	rated.Quality = 2
	if d := DeltaFor(rated); d != (TotalsDelta{Amount: -1, Completed: 1, QualitySum: 2, QualityCount: 1}) {
		t.Errorf("DeltaFor(rated) = %+v", d)
	}

	correction := testEntry("y", "a", -3)
	correction.Kind = constants.EntryKindCorrection
	if d := DeltaFor(correction); d != (TotalsDelta{Amount: -3}) {
		t.Errorf("DeltaFor(correction) = %+v", d)
	}
}

func TestOutboxDiscard(t *testing.T) {
	ob := NewOutbox(filepath.Join(t.TempDir(), "outbox.json"))
	_ = ob.Push(testEntry("1", "alice", 1), testEntry("2", "bob", 1), testEntry("3", "alice", -1))

	n, err := ob.Discard("alice")
	if err != nil || n != 2 {
		t.Fatalf("Discard() = %d, %v; want 2", n, err)
	}
	pending, _ := ob.Pending()
	if len(pending) != 1 || pending[0].AccountID != "bob" {
		t.Errorf("remaining = %+v", pending)
	}

	if n, err := ob.Discard("nobody"); err != nil || n != 0 {
		t.Errorf("Discard(nobody) = %d, %v", n, err)
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", qerrors.NewValidationError("entry", "bad"), true},
		{"wrapped missing account", fmt.Errorf("append: %w", ErrAccountNotFound), true},
		{"transient", errors.New("database is locked"), false},
		{"settings conflict", ErrSettingsConflict, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
