package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/logger"
	"github.com/timmy/newstagger/internal/source"
)

// maxLineBytes bounds one JSONL record; article bodies can be long.
const maxLineBytes = 4 * 1024 * 1024

// Item represents one line of a staging JSONL file.
type Item struct {
	SnapDate       string `json:"snap_date"` // YYYYMMDD or YYYY-MM-DD
	NewsID         string `json:"news_id"`
	Content        string `json:"content"`
	RelatedProduct string `json:"related_product"`
}

// Adapter implements source.Source over a JSON Lines file.
type Adapter struct {
	path string
	loc  *time.Location
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - path: JSONL file to read.
//   - loc: location snap dates are interpreted in; nil means local time.
//
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(path string, loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.Local
	}
	return &Adapter{path: path, loc: loc}
}

// SourceID returns the unique identifier for this source.
// Parameters: none.
// Returns:
//   - string: source identifier with "staging:" prefix.
func (a *Adapter) SourceID() string {
	return "staging:" + strings.TrimSuffix(filepath.Base(a.path), filepath.Ext(a.path))
}

// Fetch reads the file and returns the records inside window, ordered by
// snap date and then by file order. Malformed lines and empty bodies are skipped.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - window: inclusive date range to load.
//
// Returns:
//   - []domain.NewsRecord: records in the window.
//   - error: non-nil if the file cannot be read.
func (a *Adapter) Fetch(ctx context.Context, window source.Window) ([]domain.NewsRecord, error) {
	file, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("staging file not found: %s", a.path)
		}
		return nil, fmt.Errorf("failed to open staging file: %w", err)
	}
	defer file.Close()

	log := logger.FromContext(ctx).WithField(logger.FieldSource, a.SourceID())

	var records []domain.NewsRecord
	skipped := 0
	lineNo := 0

	// Read line by line (JSON Lines format)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item Item
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			skipped++
			log.WithField("line", lineNo).WithError(err).Warn("Skipping malformed staging line")
			continue
		}

		snapDate, err := parseSnapDate(item.SnapDate, a.loc)
		if err != nil {
			skipped++
			log.WithField("line", lineNo).WithError(err).Warn("Skipping staging line with bad snap_date")
			continue
		}
		if !window.Contains(snapDate) {
			continue
		}

		text := source.CleanText(item.Content)
		if text == "" || item.NewsID == "" {
			skipped++
			continue
		}

		records = append(records, domain.NewsRecord{
			SnapDate:       snapDate,
			RecordID:       item.NewsID,
			Text:           text,
			RelatedProduct: item.RelatedProduct,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading staging file: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SnapDate.Before(records[j].SnapDate)
	})

	log.WithFields(logger.Fields{
		logger.FieldCount: len(records),
		"skipped":         skipped,
	}).Info("Loaded staging records")

	return records, nil
}

func parseSnapDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{domain.SnapDateLayout, "2006-01-02", "2006/01/02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized snap_date %q", value)
}
