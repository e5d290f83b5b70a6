package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// Photo buckets served by the backend.
const (
	DefectPhotosBucket = models.DefectPhotosBucket
	RepairPhotosBucket = models.RepairPhotosBucket
)

// ErrBucketNotFound is returned for buckets other than the photo buckets.
var ErrBucketNotFound = errors.New("bucket not found")

// ObjectRepository defines the persistence operations for stored objects.
type ObjectRepository interface {
	Put(ctx context.Context, obj *models.Object) error
	Get(ctx context.Context, bucket, name string) (*models.Object, error)
}

// ObjectSigner issues and checks signed object tokens.
type ObjectSigner interface {
	SignObject(bucket, name string, ttl time.Duration) (string, error)
	ValidateObject(token, bucket, name string) error
}

// StorageService stores photos and hands out time-limited signed URLs.
type StorageService struct {
	repo    ObjectRepository
	signer  ObjectSigner
	buckets map[string]bool
	log     *zap.Logger
	now     func() time.Time
}

// NewStorageService constructs a StorageService serving the photo buckets.
func NewStorageService(repo ObjectRepository, signer ObjectSigner, log *zap.Logger) *StorageService {
	return &StorageService{
		repo:    repo,
		signer:  signer,
		buckets: map[string]bool{DefectPhotosBucket: true, RepairPhotosBucket: true},
		log:     log,
		now:     time.Now,
	}
}

func (s *StorageService) checkObject(bucket, name string) error {
	if !s.buckets[bucket] {
		return ErrBucketNotFound
	}
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: invalid object name %q", models.ErrInvalidInput, name)
	}
	return nil
}

// Upload stores data under bucket/name on behalf of owner. Names are never
// overwritten.
func (s *StorageService) Upload(ctx context.Context, owner, bucket, name, contentType string, data []byte) error {
	if err := s.checkObject(bucket, name); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty object", models.ErrInvalidInput)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	err := s.repo.Put(ctx, &models.Object{
		Bucket:      bucket,
		Name:        name,
		ContentType: contentType,
		Data:        data,
		Owner:       owner,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.log.Debug("object stored", zap.String("bucket", bucket), zap.String("name", name), zap.Int("size", len(data)))
	return nil
}

// Sign returns the path, relative to the storage root, of a URL granting
// read access to bucket/name for ttl.
func (s *StorageService) Sign(ctx context.Context, bucket, name string, ttl time.Duration) (string, error) {
	if err := s.checkObject(bucket, name); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: expiresIn must be positive", models.ErrInvalidInput)
	}
	if _, err := s.repo.Get(ctx, bucket, name); err != nil {
		return "", err
	}
	token, err := s.signer.SignObject(bucket, name, ttl)
	if err != nil {
		return "", err
	}
	return "/object/sign/" + bucket + "/" + url.PathEscape(name) + "?token=" + url.QueryEscape(token), nil
}

// Fetch returns the object when token grants access to it.
func (s *StorageService) Fetch(ctx context.Context, bucket, name, token string) (*models.Object, error) {
	if err := s.checkObject(bucket, name); err != nil {
		return nil, err
	}
	if err := s.signer.ValidateObject(token, bucket, name); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}
	return s.repo.Get(ctx, bucket, name)
}
