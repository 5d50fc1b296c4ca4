// File: internal/filestorage/store.go
package filestorage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"waste_portal_backend/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists uploaded report images and hands back a URL clients can load.
type Store interface {
	// Save writes the content under subDir with a generated name and returns its public URL.
	Save(ctx context.Context, subDir, extension, contentType string, content io.Reader) (string, error)
	// Delete removes a file previously returned by Save. Unknown URLs are ignored.
	Delete(ctx context.Context, url string) error
}

// NewStore builds the store selected by STORAGE_DRIVER.
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Store(ctx, cfg, logger)
	default:
		return NewLocalStore(cfg.StorageLocalPath, cfg.StoragePublicBaseURL, logger)
	}
}

// objectKey builds "<subDir>/<uuid><ext>" and rejects directories that climb out of the root.
func objectKey(subDir, extension string) (string, error) {
	cleanSubDir := filepath.ToSlash(filepath.Clean(subDir))
	if cleanSubDir == "." {
		cleanSubDir = ""
	}
	if strings.HasPrefix(cleanSubDir, "..") || strings.HasPrefix(cleanSubDir, "/") {
		return "", fmt.Errorf("invalid subDir path")
	}
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	name := uuid.New().String() + strings.ToLower(extension)
	if cleanSubDir == "" {
		return name, nil
	}
	return cleanSubDir + "/" + name, nil
}

// keyFromURL strips the public prefix; false when the URL is not one of ours or tries to escape.
func keyFromURL(publicBase, url string) (string, bool) {
	prefix := strings.TrimRight(publicBase, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := filepath.ToSlash(filepath.Clean(strings.TrimPrefix(url, prefix)))
	if key == "." || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", false
	}
	return key, true
}
