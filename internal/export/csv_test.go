package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/newstagger/internal/domain"
)

func sampleTable() domain.Table {
	return domain.Table{
		Columns: domain.TableColumns,
		Rows: []domain.TableRow{
			{SnapDate: "20240506", NewsID: "N1", RelatedProduct: "AS", StockDesc: "台積電(2330)", NewsSummary: "台積電公布四月營收，年增六成，創歷史新高。", Status: domain.RowStatusSuccess},
			{SnapDate: "20240506", NewsID: "N2", StockDesc: "none", NewsSummary: "failed(timeout)", Status: domain.RowStatusPartialFailure},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"snapDate", "newsId", "relatedProduct", "stockDesc", "newsSummary", "status"}, records[0])
	assert.Equal(t, "台積電(2330)", records[1][3])
	assert.Equal(t, "partial_failure", records[2][5])
}

func TestWriteCSV_EmptyTableStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, domain.Table{}))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TableColumns, records[0])
}

func TestSaveCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs")
	end := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)

	path, err := SaveCSV(dir, end, sampleTable())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "news_tags_20240505.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, utf8BOM))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}
