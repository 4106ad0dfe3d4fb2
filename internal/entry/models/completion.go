package models

// CompletionState summarizes one category.
type CompletionState string

const (
	CompletionComplete CompletionState = "complete"
	CompletionPartial  CompletionState = "partial"
	CompletionMissing  CompletionState = "missing"
)

// CategoryCompletion counts the required fields filled in one category.
type CategoryCompletion struct {
	Complete int             `json:"complete"`
	Total    int             `json:"total"`
	State    CompletionState `json:"state"`
}

// NewCategoryCompletion derives State from the counts. A category with no
// required fields is complete.
func NewCategoryCompletion(complete, total int) CategoryCompletion {
	state := CompletionPartial
	switch {
	case complete >= total:
		state = CompletionComplete
	case complete == 0:
		state = CompletionMissing
	}
	return CategoryCompletion{Complete: complete, Total: total, State: state}
}

// CompletionMetrics is keyed by category name.
type CompletionMetrics map[string]CategoryCompletion

// AllComplete is false for empty metrics.
func (m CompletionMetrics) AllComplete() bool {
	if len(m) == 0 {
		return false
	}
	for _, c := range m {
		if c.State != CompletionComplete {
			return false
		}
	}
	return true
}

// Percent is the share of required fields filled across all categories.
func (m CompletionMetrics) Percent() int {
	var done, total int
	for _, c := range m {
		done += c.Complete
		total += c.Total
	}
	if total == 0 {
		return 0
	}
	return done * 100 / total
}
