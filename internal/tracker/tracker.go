// Package tracker coordinates one signed-in account: it validates input,
// applies ledger entries optimistically to the in-memory store, and
// persists them to the durable store with bounded retries. Entries that
// still cannot be written are spooled to an outbox and flushed on the next
// reconcile.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/ledger"
	"github.com/julianstephens/qada/internal/logger"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage"
	"github.com/julianstephens/qada/internal/utils"
	"github.com/julianstephens/qada/internal/validation"
)

var (
	nowFunc = time.Now
	newID   = uuid.NewString

	// sleepFunc waits between retry attempts; tests replace it to avoid real delays
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
)

// Config tunes persistence. Zero values fall back to the defaults in constants.
type Config struct {
	MaxRetries     int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	// Outbox spools entries whose append exhausted every retry. Without one
	// such entries exist only in memory until the process exits.
	Outbox *storage.Outbox
	// BeforeReset runs before a Replace reset wipes the ledger, e.g. to take
	// a backup. A failure is logged and does not block the reset.
	BeforeReset func(ctx context.Context) error
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = constants.AppendMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = constants.AppendRetryBaseDelay
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = constants.AppendAttemptTimeout
	}
	return c
}

type Tracker struct {
	provider storage.Provider
	store    *ledger.Store
	cfg      Config

	// mu serializes mutations so local and durable append order agree;
	// debt clamping makes the fold order-dependent.
	mu sync.Mutex
	// loaded is set once the signed-in account's state was read from the
	// durable store. Until then the counters are zero, not optimistic.
	loaded bool

	warnMu   sync.Mutex
	warnings []string
}

func New(provider storage.Provider, cfg Config) *Tracker {
	return &Tracker{
		provider: provider,
		store:    ledger.New(),
		cfg:      cfg.withDefaults(),
	}
}

// Account returns the signed-in account, or "" when signed out.
func (t *Tracker) Account() string {
	return t.store.Snapshot().Account
}

// Snapshot returns a copy of the current counters and settings.
func (t *Tracker) Snapshot() ledger.State {
	return t.store.Snapshot()
}

// Loaded reports whether the signed-in account's state has been read from
// the durable store at least once.
func (t *Tracker) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

// Settings returns the cached settings of the signed-in account.
func (t *Tracker) Settings() models.Settings {
	return t.store.Snapshot().Settings
}

// Subscribe registers fn for state changes. fn runs synchronously on the
// mutating goroutine and must not call back into Tracker mutations.
func (t *Tracker) Subscribe(fn ledger.Listener) (cancel func()) {
	return t.store.Subscribe(fn)
}

// Warnings returns the persistence warnings recorded since the last clean reconcile.
func (t *Tracker) Warnings() []string {
	t.warnMu.Lock()
	defer t.warnMu.Unlock()
	return append([]string(nil), t.warnings...)
}

func (t *Tracker) warn(msg string) {
	t.warnMu.Lock()
	t.warnings = append(t.warnings, msg)
	t.warnMu.Unlock()
}

func (t *Tracker) clearWarnings() {
	t.warnMu.Lock()
	t.warnings = nil
	t.warnMu.Unlock()
}

// Close tears down the in-memory store. The provider is owned by the caller.
func (t *Tracker) Close() {
	t.store.Close()
}

// SignIn makes accountID the current account, creating it with default
// settings if needed, and loads its state from the durable store.
func (t *Tracker) SignIn(ctx context.Context, accountID string) error {
	if err := validation.AccountID(accountID); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.retry(ctx, "create account", func(ctx context.Context) error {
		return t.provider.EnsureAccount(ctx, accountID)
	}); err != nil {
		return qerrors.NewPersistenceError("create account", err)
	}

	t.store.SetAccount(accountID)
	t.loaded = false
	t.clearWarnings()
	logger.Debug("Signed in", "account", accountID)
	return t.reconcileLocked(ctx, accountID)
}

// SignOut clears all in-memory state.
func (t *Tracker) SignOut() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Reset()
	t.loaded = false
	t.clearWarnings()
}

func (t *Tracker) requireAccount() (string, error) {
	account := t.store.Snapshot().Account
	if account == "" {
		return "", qerrors.ErrNoAccount
	}
	return account, nil
}

func (t *Tracker) today() string {
	return utils.LocalDate(nowFunc(), t.store.Snapshot().Settings.Timezone)
}

func (t *Tracker) newEntry(account string, cat models.Category, amount, quality int, kind constants.EntryKind, day string) models.LedgerEntry {
	return models.LedgerEntry{
		ID:        newID(),
		AccountID: account,
		Category:  cat,
		Amount:    amount,
		Quality:   quality,
		Kind:      kind,
		LocalDate: day,
		CreatedAt: nowFunc().UTC(),
	}
}

func checkCategory(cat models.Category) error {
	if !cat.Valid() {
		return qerrors.NewValidationError("category", "unknown category index %d", int(cat))
	}
	return nil
}

// RecordCompletion pays down one prayer of cat, optionally rated 1-3 (0 = unrated).
func (t *Tracker) RecordCompletion(ctx context.Context, cat models.Category, rating int) error {
	if err := checkCategory(cat); err != nil {
		return err
	}
	if err := validation.Rating(rating); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	account, err := t.requireAccount()
	if err != nil {
		return err
	}
	entry := t.newEntry(account, cat, -1, rating, constants.EntryKindQada, t.today())
	t.store.Apply(entry)
	return t.persist(ctx, account, []models.LedgerEntry{entry})
}

// InitializeDebt sets up debt from an estimate. Replace wipes the ledger
// first so debt equals counts and all completions, history and quality
// stats are cleared; Additive adds counts on top of the existing debt.
// Every category gets an entry, zero amounts included.
func (t *Tracker) InitializeDebt(ctx context.Context, counts models.Counts, mode constants.ResetMode) error {
	for _, c := range models.Categories() {
		if counts[c] < 0 {
			return qerrors.NewValidationError("debt", "%s count cannot be negative, got %d", c, counts[c])
		}
	}
	if mode != constants.ResetModeReplace && mode != constants.ResetModeAdditive {
		return qerrors.NewValidationError("mode", "must be %q or %q, got %q", constants.ResetModeReplace, constants.ResetModeAdditive, mode)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	account, err := t.requireAccount()
	if err != nil {
		return err
	}

	if mode == constants.ResetModeReplace {
		if err := t.resetLocked(ctx, account); err != nil {
			return err
		}
	}

	day := t.today()
	entries := make([]models.LedgerEntry, 0, models.NumCategories)
	for _, c := range models.Categories() {
		entries = append(entries, t.newEntry(account, c, counts[c], 0, constants.EntryKindQada, day))
	}
	t.store.Apply(entries...)
	return t.persist(ctx, account, entries)
}

// resetLocked wipes the durable ledger and, only once that succeeded, the
// local counters. Spooled entries of the account are dropped with it.
func (t *Tracker) resetLocked(ctx context.Context, account string) error {
	if t.cfg.BeforeReset != nil {
		if err := t.cfg.BeforeReset(ctx); err != nil {
			logger.Warn("Pre-reset hook failed", "account", account, "error", err)
		}
	}

	if err := t.retry(ctx, "delete entries", func(ctx context.Context) error {
		return t.provider.DeleteAllEntries(ctx, account)
	}); err != nil {
		logger.Error("Failed to reset ledger", "account", account, "error", err)
		return qerrors.NewPersistenceError("reset ledger", err)
	}

	if t.cfg.Outbox != nil {
		if n, err := t.cfg.Outbox.Discard(account); err != nil {
			logger.Warn("Failed to discard spooled entries", "account", account, "error", err)
		} else if n > 0 {
			logger.Info("Discarded spooled entries after reset", "account", account, "count", n)
		}
	}

	t.store.ReplaceAggregate(models.Aggregate{})
	return nil
}

// Adjust changes the debt of cat by delta. A negative delta is recorded as
// a make-up entry and therefore also counts as one completion today; use
// CorrectDebt to change debt alone.
func (t *Tracker) Adjust(ctx context.Context, cat models.Category, delta int) error {
	return t.adjust(ctx, cat, delta, constants.EntryKindQada)
}

// CorrectDebt changes the debt of cat by delta without touching
// completions, history or quality stats.
func (t *Tracker) CorrectDebt(ctx context.Context, cat models.Category, delta int) error {
	return t.adjust(ctx, cat, delta, constants.EntryKindCorrection)
}

func (t *Tracker) adjust(ctx context.Context, cat models.Category, delta int, kind constants.EntryKind) error {
	if err := checkCategory(cat); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	account, err := t.requireAccount()
	if err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}
	entry := t.newEntry(account, cat, delta, 0, kind, t.today())
	t.store.Apply(entry)
	return t.persist(ctx, account, []models.LedgerEntry{entry})
}

// SaveSettings validates and merges patch into the account's settings.
func (t *Tracker) SaveSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	if err := validation.SettingsPatch(patch); err != nil {
		return models.Settings{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	account, err := t.requireAccount()
	if err != nil {
		return models.Settings{}, err
	}

	var saved models.Settings
	err = t.retry(ctx, "save settings", func(ctx context.Context) error {
		var err error
		saved, err = t.provider.SaveSettings(ctx, account, patch)
		return err
	})
	if err != nil {
		logger.Error("Failed to save settings", "account", account, "error", err)
		return models.Settings{}, qerrors.NewPersistenceError("save settings", err)
	}
	t.store.SetSettings(saved)
	return saved, nil
}

// Reconcile flushes the outbox and then overwrites the in-memory state
// with the durable store's aggregate and settings. If the flush fails the
// optimistic state is kept, since reloading would hide the spooled entries.
// Right after SignIn there is no optimistic state yet, so a failed flush
// still loads the durable state and replays the account's spooled entries
// on top of it.
func (t *Tracker) Reconcile(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	account, err := t.requireAccount()
	if err != nil {
		return err
	}
	return t.reconcileLocked(ctx, account)
}

func (t *Tracker) reconcileLocked(ctx context.Context, account string) error {
	res, flushErr := t.flushLocked(ctx)
	if flushErr != nil && t.loaded {
		t.warnRejected(res)
		return flushErr
	}

	var agg models.Aggregate
	var settings models.Settings
	err := t.retry(ctx, "load", func(ctx context.Context) error {
		var err error
		if settings, err = t.provider.LoadSettings(ctx, account); err != nil {
			return err
		}
		agg, err = t.provider.LoadAggregate(ctx, account)
		return err
	})
	if err != nil {
		logger.Error("Failed to load account state", "account", account, "error", err)
		return qerrors.NewPersistenceError("load", err)
	}

	t.store.ReplaceAggregate(agg)
	t.store.SetSettings(settings)
	t.loaded = true

	if flushErr != nil {
		// First load of the session: rebuild the optimistic state from the
		// durable state plus whatever is still spooled for this account
		spooled := t.spooledFor(account)
		t.store.Apply(spooled...)
		if len(spooled) > 0 {
			t.warn(fmt.Sprintf("%d change(s) still queued for the next sync: %v", len(spooled), flushErr))
		}
		t.warnRejected(res)
		return flushErr
	}

	t.clearWarnings()
	t.warnRejected(res)
	return nil
}

// flushLocked hands the outbox to the durable store. Runs the store refuses
// for good are set aside by the outbox and do not fail the flush.
func (t *Tracker) flushLocked(ctx context.Context) (storage.FlushResult, error) {
	if t.cfg.Outbox == nil {
		return storage.FlushResult{}, nil
	}
	res, err := t.cfg.Outbox.Flush(ctx, func(ctx context.Context, acct string, entries []models.LedgerEntry) error {
		return t.retry(ctx, "flush outbox", func(ctx context.Context) error {
			return t.provider.AppendEntries(ctx, acct, entries)
		})
	})
	if res.Flushed > 0 {
		logger.Info("Flushed spooled entries", "count", res.Flushed)
	}
	if res.Rejected > 0 {
		logger.Error("Set aside spooled entries the store refused",
			"count", res.Rejected, "file", t.cfg.Outbox.RejectedPath(), "error", res.RejectErr)
	}
	if err != nil {
		logger.Warn("Outbox flush failed", "error", err)
		return res, qerrors.NewPersistenceError("flush outbox", err)
	}
	return res, nil
}

func (t *Tracker) warnRejected(res storage.FlushResult) {
	if res.Rejected == 0 {
		return
	}
	t.warn(fmt.Sprintf("%d queued change(s) were refused by the database and moved to %s: %v",
		res.Rejected, t.cfg.Outbox.RejectedPath(), res.RejectErr))
}

func (t *Tracker) spooledFor(account string) []models.LedgerEntry {
	pending, err := t.cfg.Outbox.Pending()
	if err != nil {
		logger.Warn("Failed to read outbox", "error", err)
		return nil
	}
	var mine []models.LedgerEntry
	for _, e := range pending {
		if e.AccountID == account {
			mine = append(mine, e)
		}
	}
	return mine
}

// persist appends entries durably. The optimistic state is kept whatever
// happens; on exhaustion the entries are spooled and a warning recorded.
func (t *Tracker) persist(ctx context.Context, account string, entries []models.LedgerEntry) error {
	err := t.retry(ctx, "append", func(ctx context.Context) error {
		return t.provider.AppendEntries(ctx, account, entries)
	})
	if err == nil {
		return nil
	}

	logger.Error("Append failed after retries", "account", account, "entries", len(entries), "error", err)
	perr := qerrors.NewPersistenceError("append", err)

	if t.cfg.Outbox == nil {
		t.warn(fmt.Sprintf("%d change(s) could not be saved: %v", len(entries), err))
		return fmt.Errorf("%w: %w", qerrors.ErrRetriesExhausted, perr)
	}
	if spoolErr := t.cfg.Outbox.Push(entries...); spoolErr != nil {
		logger.Error("Failed to spool entries", "error", spoolErr)
		t.warn(fmt.Sprintf("%d change(s) could not be saved or queued: %v", len(entries), spoolErr))
		return fmt.Errorf("%w: %w (spooling also failed: %v)", qerrors.ErrRetriesExhausted, perr, spoolErr)
	}
	t.warn(fmt.Sprintf("%d change(s) queued for the next sync: %v", len(entries), err))
	return fmt.Errorf("%w: %w", qerrors.ErrRetriesExhausted, perr)
}

// retry runs fn up to MaxRetries times with exponential backoff, bounding
// each attempt with AttemptTimeout. Permanent errors are not retried.
func (t *Tracker) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	delay := t.cfg.BaseDelay
	for attempt := 1; attempt <= t.cfg.MaxRetries; attempt++ {
		actx, cancel := context.WithTimeout(ctx, t.cfg.AttemptTimeout)
		err = fn(actx)
		cancel()
		if err == nil {
			return nil
		}
		if storage.IsPermanent(err) || ctx.Err() != nil {
			return err
		}
		logger.Warn("Store operation failed", "op", op, "attempt", attempt, "error", err)
		if attempt == t.cfg.MaxRetries {
			break
		}
		if serr := sleepFunc(ctx, delay); serr != nil {
			return err
		}
		delay *= 2
	}
	return err
}
