// Package validation checks traveler data against a destination's field
// rules before any network attempt. It is pure apart from reading the clock
// for date warnings.
package validation

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"entrypass/internal/destination"
	"entrypass/internal/entry/models"
	"entrypass/internal/traveler"
	"entrypass/pkg/platform/clock"
)

const dateLayout = "2006-01-02"

// passportValidityWarning is the remaining validity under which a warning is
// raised.
const passportValidityWarning = 6 * 30 * 24 * time.Hour

var (
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	countryPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Result lists blocking errors per logical field and non-blocking warnings.
type Result struct {
	IsValid  bool                `json:"isValid"`
	Errors   map[string][]string `json:"errors"`
	Warnings []string            `json:"warnings"`
}

// FieldNames returns the fields with errors in sorted order.
func (r Result) FieldNames() []string {
	names := make([]string, 0, len(r.Errors))
	for name := range r.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Validator struct {
	clock clock.Clock
}

type Option func(*Validator)

func WithClock(c clock.Clock) Option {
	return func(v *Validator) { v.clock = c }
}

func New(opts ...Option) *Validator {
	v := &Validator{clock: clock.Real()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate fails closed: every required field must be present and every
// present field must match its rule.
func (v *Validator) Validate(data traveler.Data, cfg destination.Config) Result {
	res := Result{Errors: map[string][]string{}, Warnings: []string{}}
	values := data.Fields()

	for _, rule := range cfg.Fields {
		value := strings.TrimSpace(values[rule.Name])
		if value == "" {
			if rule.Required {
				res.add(rule.Name, "is required")
			}
			continue
		}
		for _, msg := range checkRule(rule, value) {
			res.add(rule.Name, msg)
		}
	}
	if cfg.RequireFunds && len(data.Funds) == 0 {
		res.add("funds", "at least one proof of funds is required")
	}
	for _, f := range data.Funds {
		if f.Amount < 0 {
			res.add("funds", "amount must not be negative")
			break
		}
	}

	res.Warnings = v.warnings(values)
	res.IsValid = len(res.Errors) == 0
	return res
}

func (r *Result) add(field, msg string) {
	r.Errors[field] = append(r.Errors[field], msg)
}

func checkRule(rule destination.FieldRule, value string) []string {
	var msgs []string
	if rule.MaxLength > 0 && len([]rune(value)) > rule.MaxLength {
		msgs = append(msgs, "is too long")
	}
	switch rule.Format {
	case destination.FormatDate:
		if _, err := time.Parse(dateLayout, value); err != nil {
			msgs = append(msgs, "must be a date in YYYY-MM-DD format")
		}
	case destination.FormatEmail:
		if !emailPattern.MatchString(value) {
			msgs = append(msgs, "must be a valid email address")
		}
	case destination.FormatCountry:
		if !countryPattern.MatchString(value) {
			msgs = append(msgs, "must be a three-letter country code")
		}
	}
	if !rule.Matches(value) {
		msgs = append(msgs, "has an invalid format")
	}
	return msgs
}

func (v *Validator) warnings(values map[string]string) []string {
	var out []string
	today := v.clock.Now().UTC().Truncate(24 * time.Hour)

	arrival, arrivalOK := parseDate(values["arrivalDate"])
	if arrivalOK && arrival.Before(today) {
		out = append(out, "arrival date is in the past")
	}
	if expiry, ok := parseDate(values["passportExpiry"]); ok {
		reference := today
		if arrivalOK {
			reference = arrival
		}
		if expiry.Sub(reference) < passportValidityWarning {
			out = append(out, "passport expires within 6 months of arrival")
		}
	}
	if departure, ok := parseDate(values["departureDate"]); ok && arrivalOK && departure.Before(arrival) {
		out = append(out, "departure date is before arrival date")
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	return t, err == nil
}

// Completion counts filled required fields per category. Categories without
// required fields are omitted; funds count only when the destination
// requires them.
func Completion(data traveler.Data, cfg destination.Config) models.CompletionMetrics {
	values := data.Fields()
	done := map[destination.Category]int{}
	total := map[destination.Category]int{}

	for _, rule := range cfg.Fields {
		if !rule.Required {
			continue
		}
		total[rule.Category]++
		if value := strings.TrimSpace(values[rule.Name]); value != "" && len(checkRule(rule, value)) == 0 {
			done[rule.Category]++
		}
	}
	if cfg.RequireFunds {
		total[destination.CategoryFunds]++
		if len(data.Funds) > 0 {
			done[destination.CategoryFunds]++
		}
	}

	metrics := models.CompletionMetrics{}
	for _, cat := range destination.Categories {
		if total[cat] == 0 {
			continue
		}
		metrics[string(cat)] = models.NewCategoryCompletion(done[cat], total[cat])
	}
	return metrics
}
