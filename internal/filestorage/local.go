// File: internal/filestorage/local.go
package filestorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStore keeps files on disk below storagePath and serves them under publicBase.
type LocalStore struct {
	storagePath string
	publicBase  string
	logger      *zap.Logger
}

// NewLocalStore creates the storage directory if needed.
func NewLocalStore(storagePath, publicBase string, logger *zap.Logger) (*LocalStore, error) {
	if storagePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(storagePath, os.ModePerm); err != nil {
		logger.Error("Failed to create storage path directory", zap.String("path", storagePath), zap.Error(err))
		return nil, fmt.Errorf("failed to create storage path %s: %w", storagePath, err)
	}
	if publicBase == "" {
		publicBase = "/uploads"
	}
	logger.Info("Local file storage initialized", zap.String("storagePath", storagePath))
	return &LocalStore{
		storagePath: storagePath,
		publicBase:  strings.TrimRight(publicBase, "/"),
		logger:      logger.Named("LocalStore"),
	}, nil
}

// Root is the directory served at the public base URL.
func (s *LocalStore) Root() string { return s.storagePath }

// PublicBase is the URL prefix of stored files.
func (s *LocalStore) PublicBase() string { return s.publicBase }

func (s *LocalStore) Save(_ context.Context, subDir, extension, _ string, content io.Reader) (string, error) {
	key, err := objectKey(subDir, extension)
	if err != nil {
		s.logger.Error("Invalid subDir, attempts to navigate up", zap.String("subDir", subDir))
		return "", err
	}

	destinationPath := filepath.Join(s.storagePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destinationPath), os.ModePerm); err != nil {
		s.logger.Error("Failed to create sub-directory for file storage", zap.String("path", destinationPath), zap.Error(err))
		return "", fmt.Errorf("failed to create directory for %s: %w", destinationPath, err)
	}

	dst, err := os.Create(destinationPath)
	if err != nil {
		s.logger.Error("Failed to create destination file", zap.String("path", destinationPath), zap.Error(err))
		return "", fmt.Errorf("failed to create file %s: %w", destinationPath, err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, content); err != nil {
		s.logger.Error("Failed to copy upload to destination", zap.String("path", destinationPath), zap.Error(err))
		os.Remove(destinationPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.Debug("File saved", zap.String("path", destinationPath))
	return s.publicBase + "/" + key, nil
}

func (s *LocalStore) Delete(_ context.Context, url string) error {
	key, ok := keyFromURL(s.publicBase, url)
	if !ok {
		s.logger.Warn("Refusing to delete file outside storage", zap.String("url", url))
		return nil
	}

	fullPath := filepath.Join(s.storagePath, filepath.FromSlash(key))
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.logger.Error("Failed to delete file", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}
	s.logger.Debug("File deleted", zap.String("path", fullPath))
	return nil
}
