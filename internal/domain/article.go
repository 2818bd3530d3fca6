package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DateLayout is the calendar date format used across inputs, requests, and outputs.
const DateLayout = "2006-01-02"

// Article is a classified news article.
type Article struct {
	Location  string    `json:"location"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Features  []string  `json:"relevant_features,omitempty"`
	Published time.Time `json:"-"`
}

// ParseArticleDate parses the calendar date prefix of an ISO 8601 date or timestamp.
func ParseArticleDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse article date %q: %w", s, err)
	}
	return t, nil
}

// ParseFeatureList splits a comma-separated feature tag list, dropping blanks.
func ParseFeatureList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Window is the evidence period preceding a prediction start.
type Window struct {
	PredictionStart time.Time
	BackdateMonths  int
}

// Start is the first day of evidence, BackdateMonths before the prediction start.
func (w Window) Start() time.Time {
	return MonthsBefore(w.PredictionStart, w.BackdateMonths)
}

// End is the prediction start.
func (w Window) End() time.Time {
	return w.PredictionStart
}

// MonthsBefore subtracts n calendar months, clamping the day to the target
// month's length (March 31 minus one month is February 28 or 29).
func MonthsBefore(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, -n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// FilterWindow keeps articles published on or after start and orders them
// most recent first. Articles with equal dates keep their input order.
func FilterWindow(articles []Article, start time.Time) []Article {
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if !a.Published.Before(start) {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b Article) int {
		return b.Published.Compare(a.Published)
	})
	return out
}

// FeatureCounts tallies feature tags across articles.
func FeatureCounts(articles []Article) map[string]int {
	counts := make(map[string]int)
	for _, a := range articles {
		for _, f := range a.Features {
			counts[f]++
		}
	}
	return counts
}
