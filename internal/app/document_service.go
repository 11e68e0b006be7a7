package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/pkg/filename"
)

const (
	PDFMimeType = "application/pdf"

	defaultMaxUploadBytes = 50 << 20
	tempPrefix            = ".upload-"
	maxNameAttempts       = 16
)

// DocumentService stages uploaded PDFs in the directory the retraining job
// reads from. The directory listing is the only registry.
type DocumentService struct {
	dir      string
	maxBytes int64
	now      func() time.Time

	mu        sync.Mutex
	lastToken int64
}

type StageInput struct {
	OriginalName string
	MimeType     string
	Size         int64
	Content      io.Reader
}

func NewDocumentService(dir string, maxBytes int64) (*DocumentService, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("document directory is not configured")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve document directory failed: %w", err)
	}
	return &DocumentService{
		dir:      abs,
		maxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

func (s *DocumentService) Dir() string {
	return s.dir
}

func (s *DocumentService) MaxBytes() int64 {
	return s.maxBytes
}

// Stage validates an upload and writes it atomically under a unique name.
func (s *DocumentService) Stage(ctx context.Context, input StageInput) (*model.UploadedDocument, error) {
	if input.Content == nil {
		return nil, ErrNoFileProvided
	}
	if !isPDF(input.MimeType) {
		return nil, ErrUnsupportedMediaType
	}
	if input.Size > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientGone, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create document directory: %v", ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrIOFailure, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, copyErr := io.Copy(tmp, io.LimitReader(input.Content, s.maxBytes+1))
	if copyErr == nil {
		copyErr = tmp.Sync()
	}
	if closeErr := tmp.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		var maxErr *http.MaxBytesError
		if errors.As(copyErr, &maxErr) {
			return nil, ErrPayloadTooLarge
		}
		return nil, fmt.Errorf("%w: write upload: %v", ErrIOFailure, copyErr)
	}
	if written > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}
	if written == 0 {
		return nil, ErrNoFileProvided
	}

	safeName := filename.Sanitize(input.OriginalName)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		stored := fmt.Sprintf("%d-%s", s.nextToken(), safeName)
		err := os.Link(tmpPath, filepath.Join(s.dir, stored))
		if err == nil {
			return &model.UploadedDocument{
				OriginalName: input.OriginalName,
				StoredName:   stored,
				SizeBytes:    written,
				MimeType:     PDFMimeType,
				StoredAt:     s.now(),
			}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: publish upload: %v", ErrIOFailure, err)
		}
	}
	return nil, fmt.Errorf("%w: no free name for %q", ErrIOFailure, safeName)
}

// List returns the staged PDFs, newest first.
func (s *DocumentService) List(ctx context.Context) ([]model.StoredDocument, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.StoredDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read document directory: %v", ErrIOFailure, err)
	}

	docs := make([]model.StoredDocument, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if !entry.Type().IsRegular() || !filename.IsPlainName(name) || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		docs = append(docs, model.StoredDocument{
			Name:       name,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].ModifiedAt.Equal(docs[j].ModifiedAt) {
			return docs[i].Name > docs[j].Name
		}
		return docs[i].ModifiedAt.After(docs[j].ModifiedAt)
	})
	return docs, nil
}

// Open returns a staged document for reading. Anything that is not a plain
// file name inside the directory is reported as not found.
func (s *DocumentService) Open(name string) (*os.File, fs.FileInfo, error) {
	if !filename.IsPlainName(name) {
		return nil, nil, ErrDocumentNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open document: %v", ErrIOFailure, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: stat document: %v", ErrIOFailure, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, ErrDocumentNotFound
	}
	return f, info, nil
}

// CheckWritable verifies the directory can be created and written to.
func (s *DocumentService) CheckWritable() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(s.dir, tempPrefix+"probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// nextToken is a millisecond timestamp forced to increase strictly within the
// process, so two uploads in the same millisecond still get distinct names.
func (s *DocumentService) nextToken() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.now().UnixMilli()
	if token <= s.lastToken {
		token = s.lastToken + 1
	}
	s.lastToken = token
	return token
}

func isPDF(declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, PDFMimeType)
}
