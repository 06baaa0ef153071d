package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/gateway"
	"github.com/timmy/newstagger/internal/logger"
	"github.com/timmy/newstagger/internal/prompts"
	"golang.org/x/text/unicode/norm"
)

// Reply keys of the structured model responses.
const (
	KeyStockTarget = "股票標的"
	KeySummary     = "新聞摘要"
)

var stockDescPattern = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)$`)

// Values the model uses to say the article names no listed company.
var noTargetValues = map[string]bool{
	"":     true,
	"無":    true,
	"none": true,
	"n/a":  true,
	"null": true,
}

// Caller issues one structured model call. *gateway.Gateway implements it.
type Caller interface {
	Call(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// TaggerConfig holds per-operation call settings.
type TaggerConfig struct {
	Timeout            time.Duration
	SummaryMinRunes    int
	SummaryMaxRunes    int
	SummaryMaxTokens   int
	SummaryTemperature float64
}

// Tagger performs the two model operations on one article.
type Tagger struct {
	caller  Caller
	prompts *prompts.Set
	cfg     TaggerConfig

	targetSchema  gateway.Schema
	summarySchema gateway.Schema
}

// NewTagger creates a tagger over caller using the given templates.
func NewTagger(caller Caller, set *prompts.Set, cfg TaggerConfig) *Tagger {
	if set == nil {
		set = prompts.Defaults()
	}
	t := &Tagger{caller: caller, prompts: set, cfg: cfg}
	t.targetSchema = gateway.Schema{
		Name: "stock_target",
		Fields: []gateway.Field{{
			Name:        KeyStockTarget,
			Description: "公司簡稱(四位數股票代號)，無標的時為「無」",
			Required:    true,
			Validate: func(v string) error {
				_, err := ParseStockDesc(v)
				return err
			},
		}},
	}
	t.summarySchema = gateway.Schema{
		Name: "news_summary",
		Fields: []gateway.Field{{
			Name:        KeySummary,
			Description: fmt.Sprintf("%d 到 %d 字的新聞摘要", cfg.SummaryMinRunes, cfg.SummaryMaxRunes),
			Required:    true,
			Validate:    t.validateSummary,
		}},
	}
	return t
}

// ExtractTarget asks the model for the article's primary stock target.
func (t *Tagger) ExtractTarget(ctx context.Context, text string) domain.ExtractionOutcome {
	userPrompt, err := t.prompts.Extract.Render(map[string]string{
		prompts.VarJSONSchema: t.targetSchema.Describe(),
		prompts.VarNewsText:   text,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to render extraction prompt")
		return domain.ExtractionFailure(string(gateway.KindRecord))
	}

	resp, err := t.caller.Call(ctx, gateway.Request{
		SystemPrompt: t.prompts.System.Text,
		UserPrompt:   userPrompt,
		Schema:       t.targetSchema,
		Timeout:      t.cfg.Timeout,
	})
	if err != nil {
		kind := gateway.KindOf(err)
		logger.FromContext(ctx).WithField(logger.FieldReason, string(kind)).WithError(err).Warn("Stock target extraction failed")
		return domain.ExtractionFailure(string(kind))
	}

	outcome, err := ParseStockDesc(resp.Fields[KeyStockTarget])
	if err != nil {
		return domain.ExtractionFailure(string(gateway.KindSchemaViolation))
	}
	return outcome
}

// Summarize asks the model for a length-bounded summary of the article.
func (t *Tagger) Summarize(ctx context.Context, text string) domain.SummaryOutcome {
	userPrompt, err := t.prompts.Summarize.Render(map[string]string{
		prompts.VarJSONSchema: t.summarySchema.Describe(),
		prompts.VarNewsText:   text,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to render summary prompt")
		return domain.SummaryFailure(string(gateway.KindRecord))
	}

	resp, err := t.caller.Call(ctx, gateway.Request{
		SystemPrompt: t.prompts.System.Text,
		UserPrompt:   userPrompt,
		Schema:       t.summarySchema,
		Timeout:      t.cfg.Timeout,
		MaxTokens:    t.cfg.SummaryMaxTokens,
		Temperature:  t.cfg.SummaryTemperature,
	})
	if err != nil {
		kind := gateway.KindOf(err)
		logger.FromContext(ctx).WithField(logger.FieldReason, string(kind)).WithError(err).Warn("News summarization failed")
		return domain.SummaryFailure(string(kind))
	}
	return domain.SummaryOf(resp.Fields[KeySummary])
}

func (t *Tagger) validateSummary(v string) error {
	n := utf8.RuneCountInString(v)
	if t.cfg.SummaryMinRunes > 0 && n < t.cfg.SummaryMinRunes {
		return fmt.Errorf("summary has %d characters, want at least %d", n, t.cfg.SummaryMinRunes)
	}
	if t.cfg.SummaryMaxRunes > 0 && n > t.cfg.SummaryMaxRunes {
		return fmt.Errorf("summary has %d characters, want at most %d", n, t.cfg.SummaryMaxRunes)
	}
	return nil
}

// ParseStockDesc parses a "Name(Code)" value after NFKC normalization, so
// full-width brackets and digits are accepted.
func ParseStockDesc(value string) (domain.ExtractionOutcome, error) {
	v := strings.TrimSpace(norm.NFKC.String(value))
	if noTargetValues[strings.ToLower(v)] {
		return domain.NoTarget(), nil
	}
	m := stockDescPattern.FindStringSubmatch(v)
	if m == nil {
		return domain.ExtractionOutcome{}, fmt.Errorf("stock target %q is not in Name(Code) form", value)
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return domain.ExtractionOutcome{}, fmt.Errorf("stock target %q has no company name", value)
	}
	return domain.TargetFound(name, m[2]), nil
}
