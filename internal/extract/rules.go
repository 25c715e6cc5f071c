package extract

import "regexp"

// Category is a semantic slot a submitted field can normalize into.
type Category string

const (
	CategoryHoneypot Category = "honeypot"
	CategoryName     Category = "name"
	CategoryEmail    Category = "email"
	CategoryPhone    Category = "phone"
	CategoryMessage  Category = "message"
)

// Rule maps a field-name pattern to a semantic category. Rules are data,
// not code: the set is evaluated in order and is independently testable.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
}

// DefaultRules returns the ordered rule table. Field names are matched
// case-insensitively; the first field matching a category claims it.
// decoyName is the configured honeypot field name, appended to the
// honeypot patterns so the injected decoy is always recognised.
func DefaultRules(decoyName string) []Rule {
	rules := []Rule{
		{CategoryHoneypot, regexp.MustCompile(`(?i)honeypot`)},
		{CategoryHoneypot, regexp.MustCompile(`(?i)b_honey`)},
		{CategoryHoneypot, regexp.MustCompile(`(?i)hidden_field`)},
		{CategoryHoneypot, regexp.MustCompile(`(?i)hs_field_guid`)},
		{CategoryName, regexp.MustCompile(`(?i)name`)},
		{CategoryName, regexp.MustCompile(`(?i)fname`)},
		{CategoryName, regexp.MustCompile(`(?i)lname`)},
		{CategoryName, regexp.MustCompile(`(?i)contact`)},
		{CategoryName, regexp.MustCompile(`(?i)user`)},
		{CategoryEmail, regexp.MustCompile(`(?i)email`)},
		{CategoryEmail, regexp.MustCompile(`(?i)e-mail`)},
		{CategoryEmail, regexp.MustCompile(`(?i)addr`)},
		{CategoryPhone, regexp.MustCompile(`(?i)phone`)},
		{CategoryPhone, regexp.MustCompile(`(?i)tel`)},
		{CategoryPhone, regexp.MustCompile(`(?i)mobile`)},
		{CategoryPhone, regexp.MustCompile(`(?i)cell`)},
		{CategoryPhone, regexp.MustCompile(`(?i)whatsapp`)},
		{CategoryMessage, regexp.MustCompile(`(?i)message`)},
		{CategoryMessage, regexp.MustCompile(`(?i)msg`)},
		{CategoryMessage, regexp.MustCompile(`(?i)details`)},
		{CategoryMessage, regexp.MustCompile(`(?i)requirement`)},
		{CategoryMessage, regexp.MustCompile(`(?i)note`)},
		{CategoryMessage, regexp.MustCompile(`(?i)desc`)},
		{CategoryMessage, regexp.MustCompile(`(?i)comment`)},
	}
	if decoyName != "" {
		rules = append(rules, Rule{CategoryHoneypot, regexp.MustCompile(regexp.QuoteMeta(decoyName))})
	}
	return rules
}

// Categorize returns the first category whose pattern matches the field
// name, or empty when nothing matches. Used by the static scanner to
// preview what a field would normalize to.
func Categorize(rules []Rule, fieldName string) Category {
	for _, r := range rules {
		if r.Pattern.MatchString(fieldName) {
			return r.Category
		}
	}
	return ""
}
