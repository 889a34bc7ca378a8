package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/storage"
	"civildocs_backend/platform/apperr"
)

// UploadIdentityDocument stores the citizen's identity proof and records
// its storage key on the request. Only the owner may upload, and only
// before the request is closed.
func (s *Service) UploadIdentityDocument(ctx context.Context, citizenID, requestID uuid.UUID, fileName, contentType string, reader io.Reader, size int64) (string, error) {
	if s.store == nil {
		return "", apperr.Unavailable("file storage is not configured")
	}

	current, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if current.CitizenID != citizenID {
		return "", apperr.Forbidden("not allowed to upload to this request")
	}
	if current.Status == "completed" || current.Status == "rejected" {
		return "", apperr.Conflict("request is closed")
	}

	if err := s.store.ValidateContentType(contentType); err != nil {
		return "", apperr.Validation(err.Error())
	}
	if err := s.store.ValidateFileSize(size); err != nil {
		return "", apperr.Validation(err.Error())
	}

	folder := current.CitizenID.String() + "/" + current.ID.String()
	fileKey, err := s.store.UploadFile(ctx, s.identityBucket, folder, fileName, contentType, reader, size)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "upload identity document", err)
	}

	if err := s.repo.SetIdentityDocument(ctx, requestID, fileKey); err != nil {
		return "", err
	}

	s.log.Info("identity document uploaded", "requestId", requestID, "fileKey", fileKey)
	return fileKey, nil
}

// IdentityDocumentURL returns a presigned download URL for the identity
// proof. Visible to whoever can view the request.
func (s *Service) IdentityDocumentURL(ctx context.Context, actor Actor, requestID uuid.UUID) (*storage.PresignedURL, error) {
	return s.fileURL(ctx, actor, requestID, s.identityBucket, func(req repository.Request) *string {
		return req.IdentityDocumentURL
	})
}

// DocumentURL returns a presigned download URL for the generated
// certificate of a completed request.
func (s *Service) DocumentURL(ctx context.Context, actor Actor, requestID uuid.UUID) (*storage.PresignedURL, error) {
	return s.fileURL(ctx, actor, requestID, s.documentBucket, func(req repository.Request) *string {
		return req.DocumentURL
	})
}

func (s *Service) fileURL(ctx context.Context, actor Actor, requestID uuid.UUID, bucket string, key func(repository.Request) *string) (*storage.PresignedURL, error) {
	if s.store == nil {
		return nil, apperr.Unavailable("file storage is not configured")
	}

	current, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, current); err != nil {
		return nil, err
	}

	fileKey := key(current)
	if fileKey == nil {
		return nil, apperr.NotFound("no document available for this request")
	}

	url, err := s.store.GenerateDownloadURL(ctx, bucket, *fileKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "generate download url", err)
	}
	return url, nil
}
