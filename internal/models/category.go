package models

import (
	"strings"

	qerrors "github.com/julianstephens/qada/internal/errors"
)

// Category is one of the six obligatory prayers tracked by the ledger.
type Category int

const (
	Fajr Category = iota
	Dhuhr
	Asr
	Maghrib
	Isha
	Witr
)

// NumCategories is the size of the closed Category set.
const NumCategories = 6

var categoryNames = [NumCategories]string{"fajr", "dhuhr", "asr", "maghrib", "isha", "witr"}

// Categories returns every category in canonical order.
func Categories() []Category {
	return []Category{Fajr, Dhuhr, Asr, Maghrib, Isha, Witr}
}

func (c Category) Valid() bool {
	return c >= Fajr && c <= Witr
}

func (c Category) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return categoryNames[c]
}

// ParseCategory parses a prayer name case-insensitively.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, qerrors.NewValidationError("category", "unknown prayer %q (expected one of %s)", s, strings.Join(categoryNames[:], ", "))
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, qerrors.NewValidationError("category", "unknown category index %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CategorySet marks which categories apply, e.g. to an estimation interval.
type CategorySet [NumCategories]bool

// AllCategories returns a set with every category included.
func AllCategories() CategorySet {
	var s CategorySet
	for i := range s {
		s[i] = true
	}
	return s
}

// ParseCategorySet parses a comma-separated list of prayer names.
// An empty string selects every category.
func ParseCategorySet(s string) (CategorySet, error) {
	if strings.TrimSpace(s) == "" {
		return AllCategories(), nil
	}
	var set CategorySet
	for _, part := range strings.Split(s, ",") {
		c, err := ParseCategory(part)
		if err != nil {
			return CategorySet{}, err
		}
		set[c] = true
	}
	return set, nil
}

func (s CategorySet) Has(c Category) bool {
	return c.Valid() && s[c]
}

func (s CategorySet) String() string {
	var names []string
	for _, c := range Categories() {
		if s[c] {
			names = append(names, c.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Counts holds one non-negative count per category. It backs both the
// debt snapshot and the completion snapshot.
type Counts [NumCategories]int

// Uniform returns Counts with n in every category.
func Uniform(n int) Counts {
	var c Counts
	for i := range c {
		c[i] = n
	}
	return c
}

func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Plus returns the element-wise sum of c and other.
func (c Counts) Plus(other Counts) Counts {
	for i := range c {
		c[i] += other[i]
	}
	return c
}
