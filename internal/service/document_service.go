package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/storage"
)

type documentBackend interface {
	CreateDocument(ctx context.Context, doc models.Document) (models.Document, error)
	Documents(ctx context.Context, filter repository.DocumentFilter) ([]models.Document, error)
}

type blobStore interface {
	Put(key string, r io.Reader, limit int64) (int64, error)
	Stat(key string) (int64, error)
	Delete(key string) error
	URL(key string) string
	Open(key string) (*os.File, error)
}

type uploadSigner interface {
	Sign(grant storage.UploadGrant) (string, storage.UploadGrant, error)
	Verify(token string) (storage.UploadGrant, error)
}

// DocumentServiceConfig tunes the upload handshake.
type DocumentServiceConfig struct {
	APIPrefix    string
	MaxFileSize  int64
	AllowedMIMEs []string
}

// DocumentService runs the three step upload handshake: issue a signed slot,
// accept the bytes, then register the metadata with the backend.
type DocumentService struct {
	backend   documentBackend
	blobs     blobStore
	signer    uploadSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DocumentServiceConfig
	allowed   map[string]struct{}
	now       func() time.Time
}

// NewDocumentService constructs the document service.
func NewDocumentService(backend documentBackend, blobs blobStore, signer uploadSigner, validate *validator.Validate, cfg DocumentServiceConfig, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &DocumentService{
		backend:   backend,
		blobs:     blobs,
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		allowed:   allowed,
		now:       time.Now,
	}
}

// IssueUploadURL signs an upload slot for the caller.
func (s *DocumentService) IssueUploadURL(req dto.UploadURLRequest, claims *models.PortalClaims) (*dto.UploadURLResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload request")
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[contentType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
		}
	}
	if req.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file too large")
	}

	fileName := path.Base(strings.ReplaceAll(req.FileName, "\\", "/"))
	owner := claims.UserID
	if claims.Role == models.RoleStudent {
		owner = claims.EffectiveStudentID()
	}
	token, grant, err := s.signer.Sign(storage.UploadGrant{
		Owner:       owner,
		ObjectKey:   storage.ObjectKey(owner, uuid.NewString(), fileName),
		FileName:    fileName,
		ContentType: contentType,
		MaxSize:     req.Size,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign upload")
	}
	return &dto.UploadURLResponse{
		Token:     token,
		UploadURL: strings.TrimRight(s.cfg.APIPrefix, "/") + "/documents/upload/" + token,
		FileURL:   s.blobs.URL(grant.ObjectKey),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Upload stores the bytes for a signed slot.
func (s *DocumentService) Upload(token string, body io.Reader, claims *models.PortalClaims) (int64, error) {
	grant, err := s.grantFor(token, claims)
	if err != nil {
		return 0, err
	}
	n, err := s.blobs.Put(grant.ObjectKey, body, grant.MaxSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return 0, appErrors.Clone(appErrors.ErrValidation, "file larger than declared size")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store upload")
	}
	return n, nil
}

// Register records an uploaded file with the backend.
func (s *DocumentService) Register(ctx context.Context, req dto.RegisterDocumentRequest, claims *models.PortalClaims) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document")
	}
	grant, err := s.grantFor(req.Token, claims)
	if err != nil {
		return nil, err
	}
	size, err := s.blobs.Stat(grant.ObjectKey)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file has not been uploaded")
	}

	doc := models.Document{
		StudentID:   grant.Owner,
		ClientID:    req.ClientID,
		ClientName:  req.ClientName,
		FileName:    grant.FileName,
		FileURL:     s.blobs.URL(grant.ObjectKey),
		FileType:    grant.ContentType,
		FileSize:    size,
		Description: strings.TrimSpace(req.Description),
		UploadedBy:  claims.UserID,
		UploadedAt:  s.now().UTC().Format(time.RFC3339),
	}
	created, err := s.backend.CreateDocument(ctx, doc)
	if err != nil {
		if delErr := s.blobs.Delete(grant.ObjectKey); delErr != nil {
			s.logger.Warn("orphaned upload", zap.String("key", grant.ObjectKey), zap.Error(delErr))
		}
		return nil, err
	}
	return &created, nil
}

// List returns documents visible to the caller.
func (s *DocumentService) List(ctx context.Context, filter repository.DocumentFilter, claims *models.PortalClaims) ([]models.Document, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.EffectiveStudentID()
	}
	return s.backend.Documents(ctx, filter)
}

// Open returns a stored file. Students may only read files they own.
func (s *DocumentService) Open(key string, claims *models.PortalClaims) (*os.File, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if !strings.HasPrefix(key, "documents/") {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	if claims.Role == models.RoleStudent && !strings.HasPrefix(key, "documents/"+claims.EffectiveStudentID()+"/") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document belongs to another user")
	}
	file, err := s.blobs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "open document")
	}
	return file, nil
}

func (s *DocumentService) grantFor(token string, claims *models.PortalClaims) (storage.UploadGrant, error) {
	if claims == nil {
		return storage.UploadGrant{}, appErrors.ErrUnauthorized
	}
	grant, err := s.signer.Verify(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return storage.UploadGrant{}, appErrors.Clone(appErrors.ErrValidation, "upload link expired")
	case err != nil:
		return storage.UploadGrant{}, appErrors.Clone(appErrors.ErrValidation, "invalid upload token")
	}
	if claims.UserID != grant.Owner && claims.EffectiveStudentID() != grant.Owner {
		return storage.UploadGrant{}, appErrors.Clone(appErrors.ErrForbidden, "upload belongs to another user")
	}
	return grant, nil
}
