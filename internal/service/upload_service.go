package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
	"github.com/noah-isme/civic-complaints-api/pkg/storage"
)

const sniffLen = 512

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// UploadConfig bounds accepted files.
type UploadConfig struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedMIMEs []string
}

// StoredFile describes a persisted upload.
type StoredFile struct {
	Key          string
	URL          string
	OriginalName string
	MimeType     string
	Size         int64
}

// UploadService validates multipart files and writes them to the object store.
type UploadService struct {
	store   storage.ObjectStore
	cfg     UploadConfig
	allowed map[string]bool
	logger  *zap.Logger
}

// NewUploadService constructs the service.
func NewUploadService(store storage.ObjectStore, cfg UploadConfig, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 5
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 * 1024 * 1024
	}
	allowed := make(map[string]bool, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = true
	}
	return &UploadService{store: store, cfg: cfg, allowed: allowed, logger: logger}
}

// StoreAll validates every file before writing any of them. On a write
// failure the files already stored are removed.
func (s *UploadService) StoreAll(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]StoredFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > s.cfg.MaxFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d files are allowed", s.cfg.MaxFiles))
	}
	mimes := make([]string, len(files))
	for i, fh := range files {
		mime, err := s.check(fh, s.cfg.MaxFileSize)
		if err != nil {
			return nil, err
		}
		mimes[i] = mime
	}

	stored := make([]StoredFile, 0, len(files))
	for i, fh := range files {
		sf, err := s.put(ctx, prefix, fh, mimes[i])
		if err != nil {
			s.Discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, sf)
	}
	return stored, nil
}

// StoreOne stores a single file under a custom size limit.
func (s *UploadService) StoreOne(ctx context.Context, prefix string, fh *multipart.FileHeader, maxSize int64) (StoredFile, error) {
	if maxSize <= 0 {
		maxSize = s.cfg.MaxFileSize
	}
	mime, err := s.check(fh, maxSize)
	if err != nil {
		return StoredFile{}, err
	}
	return s.put(ctx, prefix, fh, mime)
}

// Discard removes stored files, logging failures.
func (s *UploadService) Discard(ctx context.Context, files []StoredFile) {
	for _, f := range files {
		s.Remove(ctx, f.Key)
	}
}

// Remove deletes one stored object, logging failures.
func (s *UploadService) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Remove(ctx, key); err != nil {
		s.logger.Warn("failed to remove upload", zap.String("key", key), zap.Error(err))
	}
}

func (s *UploadService) check(fh *multipart.FileHeader, maxSize int64) (string, error) {
	if fh.Size > maxSize {
		return "", appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, maxSize))
	}
	f, err := fh.Open()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload")
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload")
	}
	mime := sniffMIME(head[:n], fh.Filename)
	if len(s.allowed) > 0 && !s.allowed[mime] {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", mime))
	}
	return mime, nil
}

func (s *UploadService) put(ctx context.Context, prefix string, fh *multipart.FileHeader, mime string) (StoredFile, error) {
	f, err := fh.Open()
	if err != nil {
		return StoredFile{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload")
	}
	defer f.Close()

	key, err := objectKey(prefix, fh.Filename)
	if err != nil {
		return StoredFile{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to name upload")
	}
	obj, err := s.store.Put(ctx, key, f, fh.Size, mime)
	if err != nil {
		return StoredFile{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	return StoredFile{Key: obj.Key, URL: obj.URL, OriginalName: fh.Filename, MimeType: mime, Size: fh.Size}, nil
}

// sniffMIME detects the content type. Containers the standard sniffer reports
// generically fall back to the extension.
func sniffMIME(head []byte, filename string) string {
	mime := http.DetectContentType(head)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if mime == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".mov":
			return "video/quicktime"
		case ".mp4", ".m4v":
			return "video/mp4"
		}
	}
	return mime
}

// objectKey builds <prefix>/<unix>-<random>-<sanitised>.<ext>.
func objectKey(prefix, original string) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = strings.Trim(unsafeFilenameChars.ReplaceAllString(base, "_"), "_")
	if len(base) > 60 {
		base = base[:60]
	}
	if base == "" {
		base = "file"
	}
	ext = unsafeFilenameChars.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	name := fmt.Sprintf("%d-%s-%s", time.Now().Unix(), hex.EncodeToString(buf), base)
	if ext != "" {
		name += "." + ext
	}
	return strings.Trim(prefix, "/") + "/" + name, nil
}
