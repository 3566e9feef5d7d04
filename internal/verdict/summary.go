package verdict

import "strings"

// Summary counts batch outcomes per category.
type Summary struct {
	Total          int `json:"total" yaml:"total"`
	Confirmed      int `json:"confirmed" yaml:"confirmed"`
	Candidate      int `json:"candidate" yaml:"candidate"`
	FalsePositives int `json:"false_positives" yaml:"false_positives"`
}

func (s *Summary) add(category string) {
	s.Total++
	switch Category(strings.ToLower(category)) {
	case Confirmed:
		s.Confirmed++
	case Candidate:
		s.Candidate++
	case FalsePositive:
		s.FalsePositives++
	}
}

// Summarize counts verdicts in one pass.
func Summarize(verdicts []Verdict) Summary {
	var s Summary
	for _, v := range verdicts {
		s.add(string(v.Category))
	}
	return s
}

// SummarizeRaw counts raw batch rows by their category field without coercing
// unknown values, so the per-category counts may sum to less than Total.
func SummarizeRaw(raws []RawServiceResult) Summary {
	var s Summary
	for _, raw := range raws {
		var category string
		for _, key := range []string{"model_prediction", "type", "prediction"} {
			if category, _ = raw.String(key); category != "" {
				break
			}
		}
		s.add(category)
	}
	return s
}

// Percent returns n as a share of Total, or 0 for an empty summary.
func (s Summary) Percent(n int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(n) / float64(s.Total) * 100
}
