package reports

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("report not found")

// Store persists reports, tags, comments and attachments.
type Store interface {
	CreateReport(ctx context.Context, report Report) (Report, error)
	GetReport(ctx context.Context, id string) (Report, error)
	UpdateReport(ctx context.Context, report Report) (Report, error)
	DeleteReport(ctx context.Context, id string) error
	ListReports(ctx context.Context, filter ListFilter) ([]Report, int, error)

	SetTags(ctx context.Context, reportID string, tags []string) error
	AddTags(ctx context.Context, reportID string, tags []string) error
	ListTags(ctx context.Context) ([]string, error)

	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	ListComments(ctx context.Context, reportID string) ([]Comment, error)
	DeleteComment(ctx context.Context, reportID, commentID string) error

	CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error)
	GetAttachment(ctx context.Context, reportID, attachmentID string) (Attachment, error)
	ListAttachments(ctx context.Context, reportID string) ([]Attachment, error)
	DeleteAttachment(ctx context.Context, reportID, attachmentID string) error
}
