package cvfile_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cvlift/cvlift-api/internal/domain/cvfile"
	"github.com/cvlift/cvlift-api/internal/pkg/imaging"
	"github.com/cvlift/cvlift-api/internal/pkg/storage"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Save(_ context.Context, key string, reader io.Reader, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) GetURL(key string) string {
	return "https://blob.test/" + key
}

type fakeRepo struct {
	files     map[string]*cvfile.File
	createErr error
	seq       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{files: make(map[string]*cvfile.File)}
}

func (f *fakeRepo) Create(_ context.Context, file *cvfile.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	file.ID = fmt.Sprintf("file-%d", f.seq)
	f.files[file.ID] = file
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*cvfile.File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, cvfile.ErrNotFound
	}
	return file, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID string) ([]cvfile.FileWithEvaluations, error) {
	out := make([]cvfile.FileWithEvaluations, 0)
	for _, file := range f.files {
		if file.UserID == userID {
			out = append(out, cvfile.FileWithEvaluations{File: *file})
		}
	}
	return out, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.files[id]; !ok {
		return cvfile.ErrNotFound
	}
	delete(f.files, id)
	return nil
}

func pdfBytes() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("cv content "), 10)...)
}

func newService(repo cvfile.Repository, store storage.Storage) *cvfile.Service {
	return cvfile.NewService(repo, store, imaging.NewProcessor(imaging.DefaultConfig()))
}

func TestUploadPDF(t *testing.T) {
	store := newMemStorage()
	repo := newFakeRepo()
	svc := newService(repo, store)

	f, err := svc.Upload(context.Background(), "user-1", "resume.pdf", bytes.NewReader(pdfBytes()))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if f.ID == "" || f.UserID != "user-1" || f.OriginalName != "resume.pdf" {
		t.Fatalf("unexpected file: %+v", f)
	}
	if !strings.HasPrefix(f.StorageKey, "cv/user-1/") || !strings.HasSuffix(f.StorageKey, ".pdf") {
		t.Fatalf("unexpected storage key: %s", f.StorageKey)
	}
	if f.FileURL != "https://blob.test/"+f.StorageKey {
		t.Fatalf("unexpected url: %s", f.FileURL)
	}
	if _, ok := store.objects[f.StorageKey]; !ok {
		t.Fatal("blob not stored")
	}
}

func TestUploadRejectsUnknownType(t *testing.T) {
	svc := newService(newFakeRepo(), newMemStorage())

	_, err := svc.Upload(context.Background(), "user-1", "notes.txt", strings.NewReader("plain text, not a cv"))
	if !errors.Is(err, storage.ErrInvalidMimeType) {
		t.Fatalf("expected ErrInvalidMimeType, got %v", err)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc := newService(newFakeRepo(), newMemStorage())

	_, err := svc.Upload(context.Background(), "user-1", "empty.pdf", bytes.NewReader(nil))
	if !errors.Is(err, storage.ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestUploadCleansBlobWhenInsertFails(t *testing.T) {
	store := newMemStorage()
	repo := newFakeRepo()
	repo.createErr = cvfile.ErrInternal
	svc := newService(repo, store)

	_, err := svc.Upload(context.Background(), "user-1", "resume.pdf", bytes.NewReader(pdfBytes()))
	if !errors.Is(err, cvfile.ErrInternal) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected blob cleanup, %d objects left", len(store.objects))
	}
}

func TestGetOwnedRejectsForeignFile(t *testing.T) {
	store := newMemStorage()
	repo := newFakeRepo()
	svc := newService(repo, store)

	f, err := svc.Upload(context.Background(), "user-1", "resume.pdf", bytes.NewReader(pdfBytes()))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if _, err := svc.GetOwned(context.Background(), "user-2", f.ID); !errors.Is(err, cvfile.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.GetOwned(context.Background(), "user-1", f.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
}

func TestDeleteRemovesRowAndBlob(t *testing.T) {
	store := newMemStorage()
	repo := newFakeRepo()
	svc := newService(repo, store)

	f, err := svc.Upload(context.Background(), "user-1", "resume.pdf", bytes.NewReader(pdfBytes()))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if err := svc.Delete(context.Background(), "user-1", f.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(repo.files) != 0 {
		t.Fatal("row not deleted")
	}
	if len(store.objects) != 0 {
		t.Fatal("blob not deleted")
	}

	if err := svc.Delete(context.Background(), "user-1", f.ID); !errors.Is(err, cvfile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	store := newMemStorage()
	repo := newFakeRepo()
	svc := newService(repo, store)

	content := pdfBytes()
	f, err := svc.Upload(context.Background(), "user-1", "resume.pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	got, err := svc.Download(context.Background(), f)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("downloaded content differs from upload")
	}
}
