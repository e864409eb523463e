package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorePutAndDelete(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(root, "https://files.example.com/receipts/")
	key := ReceiptKey("org-1", "pay-1", "RCP-FREE-20240101-000001")

	url, err := store.Put(context.Background(), key, "application/pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/receipts/org-1/receipts/pay-1/RCP-FREE-20240101-000001.pdf", url)

	data, err := os.ReadFile(filepath.Join(root, "org-1", "receipts", "pay-1", "RCP-FREE-20240101-000001.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	require.NoError(t, store.Delete(context.Background(), key))
	_, err = os.Stat(filepath.Join(root, key))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is fine.
	require.NoError(t, store.Delete(context.Background(), key))
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "")

	for _, key := range []string{"../outside.pdf", "/etc/passwd", ""} {
		_, err := store.Put(context.Background(), key, "application/pdf", []byte("x"))
		assert.Error(t, err, key)
	}
}

func TestS3StoreURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"public base", S3Config{Bucket: "b", Region: "eu-west-1", PublicBaseURL: "https://cdn.example.com"}, "https://cdn.example.com/o/receipts/p/r.pdf"},
		{"custom endpoint", S3Config{Bucket: "b", Region: "eu-west-1", Endpoint: "http://localhost:9000"}, "http://localhost:9000/b/o/receipts/p/r.pdf"},
		{"aws", S3Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com/o/receipts/p/r.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &S3Store{cfg: tt.cfg}
			assert.Equal(t, tt.want, s.url(ReceiptKey("o", "p", "r")))
		})
	}
}
