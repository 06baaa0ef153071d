package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
)

// CSVContentType is the content type used for exported tables.
const CSVContentType = "text/csv; charset=utf-8"

// ExportKey returns the object key for an export file: <prefix>/<yyyymmdd>/<file>.
func ExportKey(prefix string, windowEnd time.Time, fileName string) string {
	return path.Join(prefix, windowEnd.Format("20060102"), fileName)
}

// UploadFile uploads a local file under key and returns its URL.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - store: destination object storage.
//   - key: object key.
//   - localPath: file to upload.
//
// Returns:
//   - string: URL of the uploaded object.
//   - error: non-nil if the file cannot be read or uploaded.
func UploadFile(ctx context.Context, store ObjectStorage, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filepath.Base(localPath), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", filepath.Base(localPath), err)
	}

	if err := store.Upload(ctx, key, f, info.Size(), CSVContentType); err != nil {
		return "", err
	}
	return store.GetURL(key), nil
}
