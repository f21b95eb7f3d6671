package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"nahueltrek/api/internal/apperr"
)

const driveDescription = "Imagen subida desde NahuelTrek Blog"

type ClientSource interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
	Invalidate(ctx context.Context) error
}

type DriveStore struct {
	clients  ClientSource
	folderID string
	options  []option.ClientOption
	now      func() time.Time
}

func NewDriveStore(clients ClientSource, folderID string, opts ...option.ClientOption) *DriveStore {
	return &DriveStore{clients: clients, folderID: folderID, options: opts, now: time.Now}
}

// PublicURL is the direct-view link for a file shared with anyone.
func PublicURL(fileID string) string {
	return "https://drive.google.com/uc?export=view&id=" + fileID
}

func (s *DriveStore) service(ctx context.Context) (*drive.Service, error) {
	client, err := s.clients.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.options...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return srv, nil
}

// Upload stores the file, then grants anyone read access so the catalog can embed it.
func (s *DriveStore) Upload(ctx context.Context, img Image) (Result, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return Result{}, err
	}
	name := UniqueName(img.Filename, img.ContentType, s.now())
	meta := &drive.File{Name: name, Description: driveDescription}
	if s.folderID != "" {
		meta.Parents = []string{s.folderID}
	}
	created, err := srv.Files.Create(meta).
		Media(img.Body, googleapi.ContentType(img.ContentType)).
		Fields("id, name, webViewLink, webContentLink").
		Context(ctx).Do()
	if err != nil {
		return Result{}, s.apiError(ctx, "upload", err)
	}
	if _, err := srv.Permissions.Create(created.Id, &drive.Permission{Role: "reader", Type: "anyone"}).Context(ctx).Do(); err != nil {
		return Result{}, s.apiError(ctx, "share", err)
	}
	return Result{
		URL:      PublicURL(created.Id),
		FileID:   created.Id,
		Filename: name,
		Size:     img.Size,
	}, nil
}

func (s *DriveStore) Delete(ctx context.Context, fileID string) error {
	srv, err := s.service(ctx)
	if err != nil {
		return err
	}
	if err := srv.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return apperr.NotFound("image", fileID)
		}
		return s.apiError(ctx, "delete", err)
	}
	return nil
}

func (s *DriveStore) apiError(ctx context.Context, op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		_ = s.clients.Invalidate(ctx)
		return fmt.Errorf("drive %s: %w: %v", op, apperr.ErrUnauthorized, err)
	}
	return fmt.Errorf("drive %s: %w", op, err)
}
