package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/newstagger/internal/config"
)

type memStorage struct {
	objects     map[string][]byte
	contentType map[string]string
	failUpload  error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (m *memStorage) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.failUpload != nil {
		return m.failUpload
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = data
	m.contentType[key] = contentType
	return nil
}

func (m *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) GetURL(key string) string { return "https://cdn.example.com/" + key }

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func TestExportKey(t *testing.T) {
	end := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "exports/20240505/news_tags_20240505.csv", ExportKey("exports", end, "news_tags_20240505.csv"))
	assert.Equal(t, "20240505/a.csv", ExportKey("", end, "a.csv"))
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	require.NoError(t, os.WriteFile(path, []byte("snapDate,newsId\n"), 0o644))

	store := newMemStorage()
	url, err := UploadFile(context.Background(), store, "exports/20240505/a.csv", path)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/exports/20240505/a.csv", url)
	assert.Equal(t, "snapDate,newsId\n", string(store.objects["exports/20240505/a.csv"]))
	assert.Equal(t, CSVContentType, store.contentType["exports/20240505/a.csv"])

	store.failUpload = errors.New("access denied")
	_, err = UploadFile(context.Background(), store, "k", path)
	assert.EqualError(t, err, "access denied")

	_, err = UploadFile(context.Background(), store, "k", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/"))
	assert.Equal(t, "acc.r2.cloudflarestorage.com", normalizeEndpoint("https://acc.r2.cloudflarestorage.com/bucket"))
	assert.Equal(t, "", normalizeEndpoint(""))
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://acc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.ap-northeast-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}

func TestS3Storage_GetURL(t *testing.T) {
	s, err := NewS3Storage(&S3Config{Endpoint: "http://localhost:9000", Bucket: "newstagger", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/newstagger/exports/a.csv", s.GetURL("exports/a.csv"))

	s, err = NewS3Storage(&S3Config{Endpoint: "localhost:9000", Bucket: "newstagger", PublicURL: "https://cdn.example.com/", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/exports/a.csv", s.GetURL("exports/a.csv"))

	_, err = NewS3Storage(&S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.StorageConfig{Type: "r2", Endpoint: "e", Bucket: "b", UseSSL: true, PublicURL: "p"})
	assert.Equal(t, StorageTypeR2, cfg.Type)
	assert.Equal(t, "b", cfg.Bucket)
	assert.True(t, cfg.UseSSL)
}
