package models

import (
	"encoding/json"
	"testing"

	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"fajr", Fajr, false},
		{"DHUHR", Dhuhr, false},
		{"  asr ", Asr, false},
		{"maghrib", Maghrib, false},
		{"isha", Isha, false},
		{"witr", Witr, false},
		{"fajir", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCategory(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !qerrors.IsValidation(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseCategory(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCategoryStringRoundTrip(t *testing.T) {
	for _, c := range Categories() {
		parsed, err := ParseCategory(c.String())
		if err != nil || parsed != c {
			t.Errorf("round trip of %v failed: got %v, %v", c, parsed, err)
		}
	}
	if Category(42).String() != "unknown" {
		t.Error("out of range category should stringify as unknown")
	}
}

func TestParseCategorySet(t *testing.T) {
	set, err := ParseCategorySet("fajr, witr")
	if err != nil {
		t.Fatalf("ParseCategorySet() error = %v", err)
	}
	if !set.Has(Fajr) || !set.Has(Witr) || set.Has(Dhuhr) {
		t.Errorf("unexpected set %v", set)
	}
	if set.String() != "fajr,witr" {
		t.Errorf("String() = %q", set.String())
	}

	all, err := ParseCategorySet("")
	if err != nil {
		t.Fatalf("ParseCategorySet(\"\") error = %v", err)
	}
	if all != AllCategories() {
		t.Error("empty input should select every category")
	}

	if _, err := ParseCategorySet("fajr,nap"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestCountsTotalAndPlus(t *testing.T) {
	c := Uniform(3)
	if c.Total() != 18 {
		t.Errorf("Total() = %d, want 18", c.Total())
	}
	var extra Counts
	extra[Witr] = 4
	sum := c.Plus(extra)
	if sum[Witr] != 7 || sum[Fajr] != 3 {
		t.Errorf("Plus() = %v", sum)
	}
	if c[Witr] != 3 {
		t.Error("Plus() must not modify the receiver")
	}
}

func TestLedgerEntryJSON(t *testing.T) {
	entry := LedgerEntry{ID: "e1", Category: Maghrib, Amount: -1, Quality: 2, Kind: constants.EntryKindQada}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded LedgerEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Category != Maghrib {
		t.Errorf("category = %v, want maghrib", decoded.Category)
	}
	if !decoded.IsCompletion() {
		t.Error("negative qada entry should be a completion")
	}
}

func TestIsCompletion(t *testing.T) {
	tests := []struct {
		name  string
		entry LedgerEntry
		want  bool
	}{
		{"negative qada", LedgerEntry{Amount: -1, Kind: constants.EntryKindQada}, true},
		{"larger negative qada", LedgerEntry{Amount: -5, Kind: constants.EntryKindQada}, true},
		{"positive qada", LedgerEntry{Amount: 10, Kind: constants.EntryKindQada}, false},
		{"negative correction", LedgerEntry{Amount: -3, Kind: constants.EntryKindCorrection}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsCompletion(); got != tt.want {
				t.Errorf("IsCompletion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQualityAverage(t *testing.T) {
	if _, ok := (QualityStat{}).Average(); ok {
		t.Error("average of no ratings should be undefined")
	}
	avg, ok := QualityStat{Sum: 6, Count: 3}.Average()
	if !ok || avg != 2.0 {
		t.Errorf("Average() = %v, %v", avg, ok)
	}
}

func TestSettingsMerge(t *testing.T) {
	base := DefaultSettings()
	base.HabitRule = &HabitRule{Trigger: "after isha", Action: "one set", Active: true}

	days := 5
	capacity := 2.5
	merged := base.Merge(SettingsPatch{ExemptionDays: &days, DailyCapacity: &capacity})
	if merged.ExemptionDays != 5 || merged.DailyCapacity != 2.5 {
		t.Errorf("Merge() = %+v", merged)
	}
	if merged.HabitRule == nil || merged.Timezone != constants.DefaultTimezone {
		t.Error("Merge() changed fields that were not patched")
	}

	if merged.CalculationMethod != constants.DefaultCalculationMethod || merged.Madhab != constants.DefaultMadhab {
		t.Errorf("prayer-time defaults lost: %+v", merged)
	}
	madhab := constants.MadhabShafi
	if got := merged.Merge(SettingsPatch{Madhab: &madhab}); got.Madhab != constants.MadhabShafi || got.CalculationMethod != "MWL" {
		t.Errorf("Merge(madhab) = %+v", got)
	}

	cleared := merged.Merge(SettingsPatch{ClearHabitRule: true})
	if cleared.HabitRule != nil {
		t.Error("ClearHabitRule should remove the habit rule")
	}
}

func TestAggregateHasStarted(t *testing.T) {
	if (Aggregate{}).HasStarted() {
		t.Error("empty aggregate should not have started")
	}
	if !(Aggregate{History: DailyHistory{"2024-01-01": 1}}).HasStarted() {
		t.Error("aggregate with history should have started")
	}
	if !(Aggregate{Debt: Uniform(1)}).HasStarted() {
		t.Error("aggregate with debt should have started")
	}
}
