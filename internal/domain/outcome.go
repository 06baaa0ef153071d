package domain

import "fmt"

// NoTargetSentinel is written in place of a stock description when the
// article names no listed company.
const NoTargetSentinel = "none"

// ExtractionKind tells which variant an ExtractionOutcome holds.
type ExtractionKind int

const (
	ExtractionFailed ExtractionKind = iota
	ExtractionTarget
	ExtractionNoTarget
)

// StockTarget is the primary listed company an article is about.
// Code is exactly four digits.
type StockTarget struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// String formats the target as Name(Code).
func (t StockTarget) String() string {
	return fmt.Sprintf("%s(%s)", t.Name, t.Code)
}

// ExtractionOutcome is the result of the target-extraction call for one record.
type ExtractionOutcome struct {
	Kind   ExtractionKind
	Target StockTarget
	Reason string
}

// TargetFound builds an outcome holding a stock target.
func TargetFound(name, code string) ExtractionOutcome {
	return ExtractionOutcome{Kind: ExtractionTarget, Target: StockTarget{Name: name, Code: code}}
}

// NoTarget builds an outcome for an article without a company name.
func NoTarget() ExtractionOutcome {
	return ExtractionOutcome{Kind: ExtractionNoTarget}
}

// ExtractionFailure builds a failed extraction outcome.
func ExtractionFailure(reason string) ExtractionOutcome {
	return ExtractionOutcome{Kind: ExtractionFailed, Reason: reason}
}

// Failed reports whether the extraction call failed.
func (o ExtractionOutcome) Failed() bool {
	return o.Kind == ExtractionFailed
}

// Describe renders the outcome for the stockDesc column.
func (o ExtractionOutcome) Describe() string {
	switch o.Kind {
	case ExtractionTarget:
		return o.Target.String()
	case ExtractionNoTarget:
		return NoTargetSentinel
	default:
		return failedPlaceholder(o.Reason)
	}
}

// SummaryOutcome is the result of the summarization call for one record.
type SummaryOutcome struct {
	Text   string
	Reason string
	failed bool
}

// SummaryOf builds a successful summary outcome.
func SummaryOf(text string) SummaryOutcome {
	return SummaryOutcome{Text: text}
}

// SummaryFailure builds a failed summary outcome.
func SummaryFailure(reason string) SummaryOutcome {
	return SummaryOutcome{Reason: reason, failed: true}
}

// Failed reports whether the summarization call failed.
func (o SummaryOutcome) Failed() bool {
	return o.failed
}

// Describe renders the outcome for the newsSummary column.
func (o SummaryOutcome) Describe() string {
	if o.failed {
		return failedPlaceholder(o.Reason)
	}
	return o.Text
}

func failedPlaceholder(reason string) string {
	if reason == "" {
		reason = "unknown"
	}
	return "failed(" + reason + ")"
}
