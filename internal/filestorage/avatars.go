package filestorage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const avatarDir = "avatars"

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds the size limit")
)

// imageTypes maps accepted content types, as detected from the file's
// bytes, to the extension stored on disk.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore keeps profile pictures under a media directory that the HTTP
// server exposes at publicPrefix.
type AvatarStore struct {
	root         string
	publicPrefix string
	maxBytes     int64
	logger       *zap.Logger
}

// NewAvatarStore creates the avatar directory below root. Saved files are
// addressed as publicPrefix + "/avatars/<name>".
func NewAvatarStore(root, publicPrefix string, maxBytes int64, logger *zap.Logger) (*AvatarStore, error) {
	if root == "" {
		return nil, fmt.Errorf("media path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Join(root, avatarDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media path %s: %w", root, err)
	}
	logger.Info("Avatar storage ready", zap.String("root", root))
	return &AvatarStore{
		root:         root,
		publicPrefix: strings.TrimRight(publicPrefix, "/"),
		maxBytes:     maxBytes,
		logger:       logger.Named("avatars"),
	}, nil
}

// Root is the directory to serve.
func (s *AvatarStore) Root() string { return s.root }

// Save stores an uploaded image under a fresh name and returns its URL.
func (s *AvatarStore) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", fmt.Errorf("file header cannot be nil")
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	ext, err := sniff(src)
	if err != nil {
		s.logger.Info("Rejected avatar upload", zap.String("filename", fh.Filename),
			zap.String("declared", fh.Header.Get("Content-Type")), zap.Error(err))
		return "", err
	}

	name := uuid.NewString() + ext
	dest := filepath.Join(s.root, avatarDir, name)
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dest, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.Debug("Avatar saved", zap.String("path", dest))
	return s.publicPrefix + "/" + avatarDir + "/" + name, nil
}

// Delete removes an avatar previously returned by Save. URLs this store did
// not issue are ignored.
func (s *AvatarStore) Delete(url string) error {
	prefix := s.publicPrefix + "/" + avatarDir + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		s.logger.Warn("Refusing to delete avatar outside the media path", zap.String("url", url))
		return fmt.Errorf("invalid avatar path")
	}

	err := os.Remove(filepath.Join(s.root, avatarDir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete avatar %s: %w", name, err)
	}
	return nil
}

// sniff detects the image type from the content and rewinds src. The
// declared Content-Type and the file name are not consulted.
func sniff(src io.ReadSeeker) (string, error) {
	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind uploaded file: %w", err)
	}
	for ct, ext := range imageTypes {
		if mtype.Is(ct) {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
}
