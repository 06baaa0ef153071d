package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Template file names looked up by Load.
const (
	SystemFile    = "system_financial_tagger.txt"
	ExtractFile   = "extract_stock_target.txt"
	SummarizeFile = "summarize_news.txt"
)

// Placeholder names used by the built-in templates.
const (
	VarJSONSchema = "json_schema"
	VarNewsText   = "news_text"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Template is a named prompt with the placeholders it must contain.
type Template struct {
	Name     string
	Text     string
	Required []string
}

// Validate checks that every required placeholder appears in the text.
func (t Template) Validate() error {
	present := make(map[string]bool)
	for _, name := range Placeholders(t.Text) {
		present[name] = true
	}
	var missing []string
	for _, name := range t.Required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("template %s: missing placeholders %s", t.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Render substitutes vars into the template.
func (t Template) Render(vars map[string]string) (string, error) {
	out, err := Render(t.Text, vars)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", t.Name, err)
	}
	return out, nil
}

// Placeholders lists the distinct {name} placeholders in text, in order of
// first appearance. JSON braces such as {"key": "v"} are not placeholders.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Render replaces every {name} in text with vars[name]. Substituted values
// are not scanned again. A placeholder with no matching variable is an error.
func Render(text string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		val, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("no value for placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Set is the group of templates used by the tagger.
type Set struct {
	System    Template
	Extract   Template
	Summarize Template
}

// Defaults returns the built-in template set.
func Defaults() *Set {
	return &Set{
		System:    Template{Name: SystemFile, Text: FinancialTaggerSystemPrompt},
		Extract:   Template{Name: ExtractFile, Text: ExtractStockTargetPrompt, Required: []string{VarJSONSchema, VarNewsText}},
		Summarize: Template{Name: SummarizeFile, Text: SummarizeNewsPrompt, Required: []string{VarJSONSchema, VarNewsText}},
	}
}

// Load reads templates from dir, keeping the built-in text for any file that
// does not exist. Every template is validated before returning.
func Load(dir string) (*Set, error) {
	set := Defaults()
	if dir != "" {
		for _, tpl := range []*Template{&set.System, &set.Extract, &set.Summarize} {
			data, err := os.ReadFile(filepath.Join(dir, tpl.Name))
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read prompt %s: %w", tpl.Name, err)
			}
			tpl.Text = string(data)
		}
	}

	for _, tpl := range []Template{set.System, set.Extract, set.Summarize} {
		if err := tpl.Validate(); err != nil {
			return nil, err
		}
	}
	return set, nil
}
