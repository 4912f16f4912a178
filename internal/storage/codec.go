package storage

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
)

// EncodeSettings serializes the settings document stored on each account row.
// Version is kept in its own column and is not part of the document.
func EncodeSettings(settings models.Settings) ([]byte, error) {
	settings.Version = 0
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize settings: %w", err)
	}
	return data, nil
}

// DecodeSettings parses a stored settings document, filling in defaults
// for fields older documents lack.
func DecodeSettings(data []byte, version int) (models.Settings, error) {
	settings := models.DefaultSettings()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &settings); err != nil {
			return models.Settings{}, fmt.Errorf("failed to parse settings: %w", err)
		}
	}
	models.ApplyDefaultSettings(&settings)
	settings.Version = version
	return settings, nil
}

// CheckEntries rejects entries that cannot be stored for accountID. The
// error is a ValidationError, since retrying the same entries cannot help.
func CheckEntries(accountID string, entries []models.LedgerEntry) error {
	for i, e := range entries {
		switch {
		case e.ID == "":
			return qerrors.NewValidationError("entry", "entry %d has no id", i)
		case e.AccountID != "" && e.AccountID != accountID:
			return qerrors.NewValidationError("entry", "%s belongs to account %q, not %q", e.ID, e.AccountID, accountID)
		case !e.Category.Valid():
			return qerrors.NewValidationError("entry", "%s has invalid category %d", e.ID, e.Category)
		case e.Kind != constants.EntryKindQada && e.Kind != constants.EntryKindCorrection:
			return qerrors.NewValidationError("entry", "%s has invalid kind %q", e.ID, e.Kind)
		case e.Quality < 0 || e.Quality > constants.MaxQualityRating:
			return qerrors.NewValidationError("entry", "%s has invalid quality %d", e.ID, e.Quality)
		case e.LocalDate == "":
			return qerrors.NewValidationError("entry", "%s has no local date", e.ID)
		}
	}
	return nil
}

// TotalsDelta is the change one stored entry makes to its category's totals row.
type TotalsDelta struct {
	Amount       int
	Completed    int
	QualitySum   int
	QualityCount int
}

// DeltaFor returns the totals change for e. Debt is clamped by the caller's SQL.
func DeltaFor(e models.LedgerEntry) TotalsDelta {
	d := TotalsDelta{Amount: e.Amount}
	if e.IsCompletion() {
		d.Completed = 1
		if e.Quality > 0 {
			d.QualitySum = e.Quality
			d.QualityCount = 1
		}
	}
	return d
}

// ParseKind maps a stored kind back to an EntryKind; unknown values are
// read as make-up entries.
func ParseKind(s string) constants.EntryKind {
	if constants.EntryKind(s) == constants.EntryKindCorrection {
		return constants.EntryKindCorrection
	}
	return constants.EntryKindQada
}
