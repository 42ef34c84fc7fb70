package options

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var categories = []Category{
	CategoryNames,
	CategoryOrganizations,
	CategoryLocations,
	CategoryDates,
	CategoryEmails,
	CategoryPhones,
	CategorySSN,
	CategoryCreditCards,
	CategoryURLs,
}

// Categories returns every built-in category in display order
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory resolves a wire key to a Category
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if lo.Contains(categories, c) {
		return c, nil
	}
	return "", fmt.Errorf("unknown category: %s", name)
}

// ParseField resolves a field name. Besides the wire keys it accepts
// customPattern and customReplacementToken.
func ParseField(name string) (Field, error) {
	switch name {
	case string(FieldCustomPattern), "customPattern":
		return FieldCustomPattern, nil
	case string(FieldCustomReplacement), "customReplacementToken":
		return FieldCustomReplacement, nil
	}
	if c, err := ParseCategory(name); err == nil {
		return Field(c), nil
	}
	return "", fmt.Errorf("unknown option field: %s", name)
}

// Default returns the initial option set: every category enabled and no
// custom rule.
func Default() Set {
	s := Set{CustomReplacement: DefaultCustomReplacement}
	for _, c := range categories {
		s = s.With(c, true)
	}
	return s
}

// Enabled reports whether the category is enabled
func (s Set) Enabled(c Category) bool {
	switch c {
	case CategoryNames:
		return s.Names
	case CategoryOrganizations:
		return s.Organizations
	case CategoryLocations:
		return s.Locations
	case CategoryDates:
		return s.Dates
	case CategoryEmails:
		return s.Emails
	case CategoryPhones:
		return s.Phones
	case CategorySSN:
		return s.SSN
	case CategoryCreditCards:
		return s.CreditCards
	case CategoryURLs:
		return s.URLs
	}
	return false
}

// With returns a copy of s with the category toggled. Unknown categories
// leave the copy unchanged.
func (s Set) With(c Category, enabled bool) Set {
	switch c {
	case CategoryNames:
		s.Names = enabled
	case CategoryOrganizations:
		s.Organizations = enabled
	case CategoryLocations:
		s.Locations = enabled
	case CategoryDates:
		s.Dates = enabled
	case CategoryEmails:
		s.Emails = enabled
	case CategoryPhones:
		s.Phones = enabled
	case CategorySSN:
		s.SSN = enabled
	case CategoryCreditCards:
		s.CreditCards = enabled
	case CategoryURLs:
		s.URLs = enabled
	}
	return s
}

// WithDisabled returns a copy of s with the named categories turned off
func (s Set) WithDisabled(names []string) (Set, error) {
	for _, name := range names {
		c, err := ParseCategory(name)
		if err != nil {
			return s, err
		}
		s = s.With(c, false)
	}
	return s, nil
}

// EnabledCategories lists the enabled categories in display order
func (s Set) EnabledCategories() []Category {
	return lo.Filter(categories, func(c Category, _ int) bool {
		return s.Enabled(c)
	})
}

// CustomRuleActive reports whether a custom pattern will be sent
func (s Set) CustomRuleActive() bool {
	return s.CustomPattern != ""
}

// Update returns a new Set with field set to value. Category fields take a
// bool, the custom fields take a string. current is never modified.
func Update(current Set, field Field, value any) (Set, error) {
	switch field {
	case FieldCustomPattern, FieldCustomReplacement:
		str, ok := value.(string)
		if !ok {
			return current, fmt.Errorf("option %s expects a string, got %T", field, value)
		}
		if field == FieldCustomPattern {
			current.CustomPattern = str
		} else {
			current.CustomReplacement = str
		}
		return current, nil
	}

	c, err := ParseCategory(string(field))
	if err != nil {
		return current, fmt.Errorf("unknown option field: %s", field)
	}
	enabled, ok := value.(bool)
	if !ok {
		return current, fmt.Errorf("option %s expects a bool, got %T", field, value)
	}
	return current.With(c, enabled), nil
}
