// Package extract converts a raw submitted-field collection into the raw
// map plus a best-effort normalized subset (name/email/phone/message plus
// a bot flag). Pure transforms: no state, no I/O.
package extract

import (
	"regexp"
	"strings"
)

// Field is one submitted (name, value) pair in submission order.
type Field struct {
	Name  string
	Value string
}

// Region carries the locale hints used for phone-number defaulting.
// Values come from the page fingerprint, not from the host machine.
type Region struct {
	Timezone string
	Language string
}

// India reports whether the timezone or language indicates an Indian
// visitor. A heuristic default for 10-digit numbers, not a validation.
func (r Region) India() bool {
	return strings.Contains(r.Timezone, "Kolkata") ||
		strings.Contains(r.Timezone, "Calcutta") ||
		strings.Contains(r.Language, "IN")
}

// Normalized is the best-effort semantic view of a submission. Fields that
// match no raw field, or whose matched value fails its validity gate, stay
// null in the JSON envelope.
type Normalized struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Message *string `json:"message"`
	IsBot   bool    `json:"isBot"`
}

// Result pairs the raw collection with its normalized subset.
type Result struct {
	Raw        *Raw
	Normalized Normalized
}

// Extract builds the raw multimap and the normalized subset from the
// ordered field entries. Each semantic category is claimed by the first
// field whose name matches one of its patterns (first-match-wins, not
// best-match); later matches are ignored even when the claimed value
// normalizes to null.
func Extract(fields []Field, rules []Rule, region Region) Result {
	raw := NewRaw()
	var norm Normalized
	claimed := make(map[Category]bool, 4)

	for _, f := range fields {
		raw.Add(f.Name, f.Value)

		lowKey := strings.ToLower(f.Name)

		if matches(rules, CategoryHoneypot, lowKey) && f.Value != "" {
			norm.IsBot = true
		}
		if !claimed[CategoryName] && matches(rules, CategoryName, lowKey) {
			claimed[CategoryName] = true
			norm.Name = nonEmpty(f.Value)
		}
		if !claimed[CategoryEmail] && matches(rules, CategoryEmail, lowKey) {
			claimed[CategoryEmail] = true
			norm.Email = NormalizeEmail(f.Value)
		}
		if !claimed[CategoryPhone] && matches(rules, CategoryPhone, lowKey) {
			claimed[CategoryPhone] = true
			norm.Phone = NormalizePhone(f.Value, region)
		}
		if !claimed[CategoryMessage] && matches(rules, CategoryMessage, lowKey) {
			claimed[CategoryMessage] = true
			norm.Message = nonEmpty(f.Value)
		}
	}

	return Result{Raw: raw, Normalized: norm}
}

func matches(rules []Rule, cat Category, lowKey string) bool {
	for _, r := range rules {
		if r.Category == cat && r.Pattern.MatchString(lowKey) {
			return true
		}
	}
	return false
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// emailShape is a validity gate, not a canonicalizer: minimal
// local@domain.tld structure, nothing more.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail returns the trimmed value unchanged when it has a minimal
// local@domain.tld shape, otherwise nil. No case or Unicode folding.
func NormalizeEmail(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" || !emailShape.MatchString(v) {
		return nil
	}
	return &v
}

// NormalizePhone standardizes a phone value toward E.164:
//
//  1. strip non-digits; nothing left means nil
//  2. a leading "00" is an international exit code: "+" plus the rest
//  3. exactly 10 digits get a region default: +91 for India, else +1
//  4. values already starting with "+" keep it, digits cleaned
//  5. 6..15 digits get a bare "+" prefix
//  6. anything else returns the stripped digits with no prefix
//
// Step 6 is deliberate policy: short or oversized digit strings are kept
// as-is rather than dressed up as E.164.
func NormalizePhone(value string, region Region) *string {
	trimmed := strings.TrimSpace(value)
	digits := stripNonDigits(trimmed)
	if digits == "" {
		return nil
	}

	var out string
	switch {
	case strings.HasPrefix(trimmed, "00"):
		out = "+" + digits[2:]
	case len(digits) == 10:
		if region.India() {
			out = "+91" + digits
		} else {
			out = "+1" + digits
		}
	case strings.HasPrefix(trimmed, "+"):
		out = "+" + digits
	case len(digits) > 5 && len(digits) <= 15:
		out = "+" + digits
	default:
		out = digits
	}
	return &out
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
