package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/propertydesk/propertydesk/internal/config"
	"github.com/propertydesk/propertydesk/internal/storage"
)

type storedBlob struct {
	content      []byte
	metadata     map[string]string
	lastModified time.Time
}

// blobServer imitates enough of the Blob REST API for the backend:
// PUT uploads, GET downloads, HEAD properties and DELETE.
type blobServer struct {
	mu    sync.Mutex
	blobs map[string]*storedBlob
}

func (b *blobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	stored, ok := b.blobs[key]

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		meta := map[string]string{}
		for k, v := range r.Header {
			lk := strings.ToLower(k)
			if strings.HasPrefix(lk, "x-ms-meta-") && len(v) > 0 {
				meta[strings.TrimPrefix(lk, "x-ms-meta-")] = v[0]
			}
		}
		b.blobs[key] = &storedBlob{content: data, metadata: meta, lastModified: time.Now().UTC()}
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		if !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(stored.content)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(stored.content)
	case http.MethodHead:
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(stored.content)))
		w.Header().Set("Last-Modified", stored.lastModified.Format(http.TimeFormat))
		for k, v := range stored.metadata {
			w.Header().Set("x-ms-meta-"+k, v)
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			http.NotFound(w, r)
			return
		}
		delete(b.blobs, key)
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*AzureStorage, *blobServer) {
	t.Helper()
	fake := &blobServer{blobs: map[string]*storedBlob{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := azblob.NewClientWithNoCredential(srv.URL, nil)
	if err != nil {
		t.Fatalf("failed to create azblob client: %v", err)
	}
	return &AzureStorage{
		client:        client,
		serviceURL:    srv.URL,
		containerName: "attachments",
	}, fake
}

func TestUploadDownloadDeleteAndExists(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	data := []byte("damp patch above bathroom window")
	path := "conditions/cr-1/ab12cd34-bathroom.jpg"

	res, err := s.Upload(ctx, path, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.Size != int64(len(data)) || res.Path != path || res.Checksum == "" {
		t.Fatalf("unexpected upload result: %+v", res)
	}

	rc, err := s.Download(ctx, path)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Fatalf("download content mismatch: %q", got)
	}

	if exists, err := s.Exists(ctx, path); err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}

	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if exists, err := s.Exists(ctx, path); err != nil || exists {
		t.Fatalf("Exists after delete = %v, %v; want false, nil", exists, err)
	}
}

func TestDelete_MissingBlobIsNotAnError(t *testing.T) {
	s, _ := newTestStorage(t)
	if err := s.Delete(context.Background(), "conditions/cr-1/gone.jpg"); err != nil {
		t.Fatalf("Delete of missing blob = %v, want nil", err)
	}
}

func TestDownload_MissingBlob(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.Download(context.Background(), "conditions/cr-1/gone.jpg")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Download error = %v, want storage.ErrNotFound", err)
	}
}

func TestGetMetadata_UsesStoredChecksum(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	data := []byte("meter reading 04211")

	res, err := s.Upload(ctx, "conditions/cr-2/meter.txt", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	meta, err := s.GetMetadata(ctx, "conditions/cr-2/meter.txt")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", meta.Size, len(data))
	}
	if meta.Checksum != res.Checksum {
		t.Errorf("Checksum = %q, want %q", meta.Checksum, res.Checksum)
	}
}

func TestGetMetadata_ComputesWhenMissing(t *testing.T) {
	s, fake := newTestStorage(t)
	data := []byte("legacy upload")
	fake.blobs["attachments/conditions/cr-3/old.txt"] = &storedBlob{content: data, lastModified: time.Now().UTC()}

	meta, err := s.GetMetadata(context.Background(), "conditions/cr-3/old.txt")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	// sha256("legacy upload")
	if len(meta.Checksum) != 64 {
		t.Errorf("Checksum = %q, want a hex sha256", meta.Checksum)
	}
}

func TestGetMetadata_MissingBlob(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.GetMetadata(context.Background(), "conditions/cr-1/gone.jpg")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetMetadata error = %v, want storage.ErrNotFound", err)
	}
}

func TestGetURL_CDNAndNotFound(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	s.cdnURL = "https://cdn.propertydesk.test"

	if _, err := s.Upload(ctx, "conditions/cr-4/hall.jpg", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	u, err := s.GetURL(ctx, "conditions/cr-4/hall.jpg", time.Hour)
	if err != nil {
		t.Fatalf("GetURL failed: %v", err)
	}
	if u != "https://cdn.propertydesk.test/conditions/cr-4/hall.jpg" {
		t.Errorf("GetURL = %s", u)
	}

	if _, err := s.GetURL(ctx, "conditions/cr-4/missing.jpg", time.Hour); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetURL error = %v, want storage.ErrNotFound", err)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AzureStorageConfig
	}{
		{"missing account name", config.AzureStorageConfig{AccountKey: "a2V5", ContainerName: "attachments"}},
		{"missing account key", config.AzureStorageConfig{AccountName: "pdattachments", ContainerName: "attachments"}},
		{"missing container", config.AzureStorageConfig{AccountName: "pdattachments", AccountKey: "a2V5"}},
		{"key not base64", config.AzureStorageConfig{AccountName: "pdattachments", AccountKey: "not base64!", ContainerName: "attachments"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Error("New() = nil error, want error")
			}
		})
	}
}

func TestNew_ServiceURLOverride(t *testing.T) {
	s, err := New(&config.AzureStorageConfig{
		AccountName:   "devstoreaccount1",
		AccountKey:    "a2V5",
		ContainerName: "attachments",
		ServiceURL:    "http://127.0.0.1:10000/devstoreaccount1/",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.serviceURL != "http://127.0.0.1:10000/devstoreaccount1" {
		t.Errorf("serviceURL = %s", s.serviceURL)
	}
}
