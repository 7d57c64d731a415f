package reports

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/middleware"
)

// ReportPage is a paginated report listing.
type ReportPage struct {
	Items    []Report `json:"items"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Pages    int      `json:"pages"`
}

// Service implements report management with clearance enforcement.
type Service struct {
	store  Store
	ai     *AIClient
	files  *FileStorage
	logger *logging.Logger
}

func NewService(store Store, ai *AIClient, files *FileStorage, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, ai: ai, files: files, logger: logger}
}

// List returns one page of reports visible to the caller. Field agents
// only see their own reports.
func (s *Service) List(ctx context.Context, caller middleware.Identity, filter ListFilter, page, pageSize int) (ReportPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	filter.AllowedClassifications = AllowedClassifications(caller.Clearance)

	if caller.Role == "field" && filter.SubmittedBy == "" {
		filter.SubmittedBy = caller.UserID
	}

	items, total, err := s.store.ListReports(ctx, filter)
	if err != nil {
		return ReportPage{}, errors.Internal("report listing failed", err)
	}
	pages := (total + pageSize - 1) / pageSize
	return ReportPage{Items: items, Total: total, Page: page, PageSize: pageSize, Pages: pages}, nil
}

// Get returns a single report after access checks.
func (s *Service) Get(ctx context.Context, caller middleware.Identity, reportID string) (Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return Report{}, errors.NotFound("report not found")
		}
		return Report{}, errors.Internal("report lookup failed", err)
	}
	if err := s.checkAccess(caller, report); err != nil {
		return Report{}, err
	}
	return report, nil
}

func (s *Service) checkAccess(caller middleware.Identity, report Report) error {
	if !CanAccess(caller.Clearance, report.Classification) {
		return errors.Forbidden(fmt.Sprintf("insufficient clearance for %s reports", report.Classification))
	}
	if caller.Role == "field" && report.SubmittedByID != caller.UserID {
		return errors.Forbidden("field agents can only access their own reports")
	}
	return nil
}

// Create stores a new draft report and runs AI analysis on it. Analysis
// failures never block creation.
func (s *Service) Create(ctx context.Context, caller middleware.Identity, in CreateReportInput) (Report, error) {
	if err := in.Validate(); err != nil {
		return Report{}, err
	}
	if !CanAccess(caller.Clearance, in.Classification) {
		return Report{}, errors.Forbidden(fmt.Sprintf("insufficient clearance to create %s reports", in.Classification))
	}

	report := Report{
		Title:          in.Title,
		Content:        in.Content,
		Source:         in.Source,
		Classification: in.Classification,
		Location:       in.Location,
		Coordinates:    in.Coordinates,
		SubmittedByID:  caller.UserID,
		Status:         StatusDraft,
		Tags:           in.Tags,
	}
	if in.ReportDate != nil {
		report.ReportDate = in.ReportDate.UTC()
	}

	created, err := s.store.CreateReport(ctx, report)
	if err != nil {
		return Report{}, errors.Internal("report creation failed", err)
	}

	if enriched, err := s.applyAnalysis(ctx, created); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("report_id", created.ID).
			Warn("analysis of new report failed")
	} else {
		created = enriched
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"report_id":      created.ID,
		"classification": created.Classification,
	}).Info("report created")
	return created, nil
}

// Update modifies a report. Only the author or admins and commanders
// may edit; finished reports are frozen except for admins.
func (s *Service) Update(ctx context.Context, caller middleware.Identity, reportID string, in UpdateReportInput) (Report, error) {
	if err := in.Validate(); err != nil {
		return Report{}, err
	}
	report, err := s.Get(ctx, caller, reportID)
	if err != nil {
		return Report{}, err
	}

	isAuthor := report.SubmittedByID == caller.UserID
	isSupervisor := caller.Role == "admin" || caller.Role == "commander"
	if !isAuthor && !isSupervisor {
		return Report{}, errors.Forbidden("only the author or a supervisor can modify this report")
	}
	if caller.Role != "admin" {
		switch report.Status {
		case StatusApproved, StatusRejected, StatusArchived:
			return Report{}, errors.BadRequest(fmt.Sprintf("cannot modify a report with status %s", report.Status))
		}
	}
	if in.Classification != nil && *in.Classification != report.Classification {
		if !CanAccess(caller.Clearance, *in.Classification) {
			return Report{}, errors.Forbidden(fmt.Sprintf("insufficient clearance to assign %s classification", *in.Classification))
		}
		report.Classification = *in.Classification
	}
	if in.Title != nil {
		report.Title = *in.Title
	}
	if in.Content != nil {
		report.Content = *in.Content
	}
	if in.Source != nil {
		report.Source = *in.Source
	}
	if in.Location != nil {
		report.Location = *in.Location
	}
	if in.Coordinates != nil {
		report.Coordinates = *in.Coordinates
	}
	if in.ReportDate != nil {
		report.ReportDate = in.ReportDate.UTC()
	}
	if in.Tags != nil {
		report.Tags = in.Tags
	}

	updated, err := s.store.UpdateReport(ctx, report)
	if err != nil {
		return Report{}, errors.Internal("report update failed", err)
	}
	return updated, nil
}

// Delete removes a report. Role enforcement happens at the route level.
func (s *Service) Delete(ctx context.Context, reportID string) error {
	attachments, err := s.store.ListAttachments(ctx, reportID)
	if err == nil && s.files != nil {
		for _, attachment := range attachments {
			_ = s.files.Remove(attachment.FilePath)
		}
	}
	if err := s.store.DeleteReport(ctx, reportID); err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return errors.NotFound("report not found")
		}
		return errors.Internal("report deletion failed", err)
	}
	return nil
}

// Submit moves a draft into the approval queue.
func (s *Service) Submit(ctx context.Context, caller middleware.Identity, reportID string) (Report, error) {
	report, err := s.Get(ctx, caller, reportID)
	if err != nil {
		return Report{}, err
	}
	if caller.Role != "admin" && report.SubmittedByID != caller.UserID {
		return Report{}, errors.Forbidden("only the author can submit this report")
	}
	if report.Status != StatusDraft {
		return Report{}, errors.BadRequest(fmt.Sprintf("cannot submit a report with status %s", report.Status))
	}
	report.Status = StatusPending

	updated, err := s.store.UpdateReport(ctx, report)
	if err != nil {
		return Report{}, errors.Internal("report submission failed", err)
	}
	s.logger.WithContext(ctx).WithField("report_id", reportID).Info("report submitted for approval")
	return updated, nil
}

// Decide approves or rejects a pending report. Callers must hold
// clearance for the report's classification.
func (s *Service) Decide(ctx context.Context, caller middleware.Identity, reportID string, decision ApprovalInput) (Report, error) {
	report, err := s.Get(ctx, caller, reportID)
	if err != nil {
		return Report{}, err
	}
	if report.Status != StatusPending {
		return Report{}, errors.BadRequest(fmt.Sprintf("report is not pending approval (current status: %s)", report.Status))
	}

	report.ApprovedByID = caller.UserID
	if decision.Approved {
		report.Status = StatusApproved
		report.RejectionReason = ""
	} else {
		report.Status = StatusRejected
		report.RejectionReason = decision.RejectionReason
	}

	updated, err := s.store.UpdateReport(ctx, report)
	if err != nil {
		return Report{}, errors.Internal("report decision failed", err)
	}
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"report_id": reportID,
		"status":    updated.Status,
	}).Info("report decided")
	return updated, nil
}

// AnalyzeReport runs AI analysis on demand and persists the outcome.
func (s *Service) AnalyzeReport(ctx context.Context, caller middleware.Identity, reportID string) (Analysis, error) {
	report, err := s.Get(ctx, caller, reportID)
	if err != nil {
		return Analysis{}, err
	}
	updated, err := s.applyAnalysis(ctx, report)
	if err != nil {
		return Analysis{}, errors.Internal("report analysis failed", err)
	}
	return Analysis{
		Summary:          updated.AIAnalysis,
		ThreatLevel:      updated.ThreatLevel,
		CredibilityScore: updated.CredibilityScore,
		SuggestedTags:    updated.Tags,
		Entities:         s.lastEntities(report),
		RelatedReports:   []string{},
	}, nil
}

// applyAnalysis runs the AI client, stores the result on the report and
// merges suggested tags.
func (s *Service) applyAnalysis(ctx context.Context, report Report) (Report, error) {
	if s.ai == nil {
		return report, nil
	}
	analysis := s.ai.Analyze(ctx, report)

	report.AIAnalysis = analysis.Summary
	report.ThreatLevel = analysis.ThreatLevel
	report.CredibilityScore = analysis.CredibilityScore

	updated, err := s.store.UpdateReport(ctx, report)
	if err != nil {
		return Report{}, err
	}
	if len(analysis.SuggestedTags) > 0 {
		if err := s.store.AddTags(ctx, report.ID, analysis.SuggestedTags); err != nil {
			return Report{}, err
		}
		return s.store.GetReport(ctx, report.ID)
	}
	return updated, nil
}

func (s *Service) lastEntities(report Report) map[string][]string {
	entities := map[string][]string{
		"locations":     {},
		"persons":       {},
		"organizations": {},
		"dates":         {},
	}
	if report.Location != "" {
		entities["locations"] = []string{report.Location}
	}
	return entities
}

// AddComment attaches a remark to a report the caller can access.
func (s *Service) AddComment(ctx context.Context, caller middleware.Identity, reportID, content string) (Comment, error) {
	if content == "" {
		return Comment{}, errors.BadRequest("content is required")
	}
	if _, err := s.Get(ctx, caller, reportID); err != nil {
		return Comment{}, err
	}
	comment, err := s.store.CreateComment(ctx, Comment{
		ReportID: reportID,
		UserID:   caller.UserID,
		Content:  content,
	})
	if err != nil {
		return Comment{}, errors.Internal("comment creation failed", err)
	}
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, caller middleware.Identity, reportID string) ([]Comment, error) {
	if _, err := s.Get(ctx, caller, reportID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, reportID)
	if err != nil {
		return nil, errors.Internal("comment listing failed", err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Authors delete their own; admins any.
func (s *Service) DeleteComment(ctx context.Context, caller middleware.Identity, reportID, commentID string) error {
	comments, err := s.ListComments(ctx, caller, reportID)
	if err != nil {
		return err
	}
	for _, comment := range comments {
		if comment.ID != commentID {
			continue
		}
		if caller.Role != "admin" && comment.UserID != caller.UserID {
			return errors.Forbidden("only the comment author or an admin can delete it")
		}
		if err := s.store.DeleteComment(ctx, reportID, commentID); err != nil {
			return errors.Internal("comment deletion failed", err)
		}
		return nil
	}
	return errors.NotFound("comment not found")
}

// AddAttachment stores a file against a report the caller can access.
func (s *Service) AddAttachment(ctx context.Context, caller middleware.Identity, reportID, filename, fileType string, payload io.Reader) (Attachment, error) {
	if s.files == nil {
		return Attachment{}, errors.ServiceUnavailable("attachment storage is not configured")
	}
	if _, err := s.Get(ctx, caller, reportID); err != nil {
		return Attachment{}, err
	}

	path, size, err := s.files.Save(reportID, filename, payload)
	if err != nil {
		return Attachment{}, errors.Internal("attachment storage failed", err)
	}
	attachment, err := s.store.CreateAttachment(ctx, Attachment{
		ReportID:     reportID,
		Filename:     SanitizeFilename(filename),
		FileType:     fileType,
		FileSize:     size,
		FilePath:     path,
		UploadedByID: caller.UserID,
		UploadedAt:   time.Now().UTC(),
	})
	if err != nil {
		_ = s.files.Remove(path)
		return Attachment{}, errors.Internal("attachment record creation failed", err)
	}
	return attachment, nil
}

func (s *Service) ListAttachments(ctx context.Context, caller middleware.Identity, reportID string) ([]Attachment, error) {
	if _, err := s.Get(ctx, caller, reportID); err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, reportID)
	if err != nil {
		return nil, errors.Internal("attachment listing failed", err)
	}
	return attachments, nil
}

// OpenAttachment returns the attachment metadata and a reader over its
// payload. The caller must close the reader.
func (s *Service) OpenAttachment(ctx context.Context, caller middleware.Identity, reportID, attachmentID string) (Attachment, io.ReadCloser, error) {
	if s.files == nil {
		return Attachment{}, nil, errors.ServiceUnavailable("attachment storage is not configured")
	}
	if _, err := s.Get(ctx, caller, reportID); err != nil {
		return Attachment{}, nil, err
	}
	attachment, err := s.store.GetAttachment(ctx, reportID, attachmentID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return Attachment{}, nil, errors.NotFound("attachment not found")
		}
		return Attachment{}, nil, errors.Internal("attachment lookup failed", err)
	}
	reader, err := s.files.Open(attachment.FilePath)
	if err != nil {
		return Attachment{}, nil, errors.Internal("attachment open failed", err)
	}
	return attachment, reader, nil
}

// DeleteAttachment removes a stored file. Uploaders delete their own;
// admins any.
func (s *Service) DeleteAttachment(ctx context.Context, caller middleware.Identity, reportID, attachmentID string) error {
	if _, err := s.Get(ctx, caller, reportID); err != nil {
		return err
	}
	attachment, err := s.store.GetAttachment(ctx, reportID, attachmentID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return errors.NotFound("attachment not found")
		}
		return errors.Internal("attachment lookup failed", err)
	}
	if caller.Role != "admin" && attachment.UploadedByID != caller.UserID {
		return errors.Forbidden("only the uploader or an admin can delete this attachment")
	}
	if err := s.store.DeleteAttachment(ctx, reportID, attachmentID); err != nil {
		return errors.Internal("attachment deletion failed", err)
	}
	if s.files != nil {
		_ = s.files.Remove(attachment.FilePath)
	}
	return nil
}

// Tags returns all known tag names.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, errors.Internal("tag listing failed", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
