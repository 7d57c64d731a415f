package reports

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	reports     map[string]Report
	comments    map[string][]Comment
	attachments map[string][]Attachment
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:     make(map[string]Report),
		comments:    make(map[string][]Comment),
		attachments: make(map[string][]Attachment),
	}
}

func (s *MemoryStore) CreateReport(_ context.Context, report Report) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now
	if report.ReportDate.IsZero() {
		report.ReportDate = now
	}
	if report.Status == "" {
		report.Status = StatusDraft
	}
	report.Tags = normalizeTags(report.Tags)
	s.reports[report.ID] = report
	return report, nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return report, nil
}

func (s *MemoryStore) UpdateReport(_ context.Context, report Report) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reports[report.ID]
	if !ok {
		return Report{}, ErrNotFound
	}
	report.CreatedAt = existing.CreatedAt
	report.UpdatedAt = time.Now().UTC()
	if report.Tags == nil {
		report.Tags = existing.Tags
	} else {
		report.Tags = normalizeTags(report.Tags)
	}
	s.reports[report.ID] = report
	return report, nil
}

func (s *MemoryStore) DeleteReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return ErrNotFound
	}
	delete(s.reports, id)
	delete(s.comments, id)
	delete(s.attachments, id)
	return nil
}

func (s *MemoryStore) ListReports(_ context.Context, filter ListFilter) ([]Report, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Report
	for _, report := range s.reports {
		if matchesFilter(report, filter) {
			matched = append(matched, report)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ReportDate.Equal(matched[j].ReportDate) {
			return matched[i].ReportDate.After(matched[j].ReportDate)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]Report, end-offset)
	copy(out, matched[offset:end])
	return out, total, nil
}

func matchesFilter(report Report, filter ListFilter) bool {
	if filter.Status != "" && report.Status != filter.Status {
		return false
	}
	if filter.Classification != "" && report.Classification != filter.Classification {
		return false
	}
	if filter.SubmittedBy != "" && report.SubmittedByID != filter.SubmittedBy {
		return false
	}
	if filter.ApprovedBy != "" && report.ApprovedByID != filter.ApprovedBy {
		return false
	}
	if !filter.FromDate.IsZero() && report.ReportDate.Before(filter.FromDate) {
		return false
	}
	if !filter.ToDate.IsZero() && report.ReportDate.After(filter.ToDate) {
		return false
	}
	if filter.Search != "" {
		term := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(report.Title), term) &&
			!strings.Contains(strings.ToLower(report.Content), term) &&
			!strings.Contains(strings.ToLower(report.Location), term) {
			return false
		}
	}
	if len(filter.Tags) > 0 {
		found := false
		for _, want := range filter.Tags {
			for _, have := range report.Tags {
				if strings.EqualFold(want, have) {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.AllowedClassifications) > 0 && !containsClassification(filter.AllowedClassifications, report.Classification) {
		return false
	}
	return true
}

func containsClassification(list []Classification, c Classification) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}

func (s *MemoryStore) SetTags(_ context.Context, reportID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	report.Tags = normalizeTags(tags)
	s.reports[reportID] = report
	return nil
}

func (s *MemoryStore) AddTags(_ context.Context, reportID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	report.Tags = normalizeTags(append(report.Tags, tags...))
	s.reports[reportID] = report
	return nil
}

func (s *MemoryStore) ListTags(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, report := range s.reports {
		for _, tag := range report.Tags {
			if !seen[tag] {
				seen[tag] = true
				names = append(names, tag)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, comment Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[comment.ReportID]; !ok {
		return Comment{}, ErrNotFound
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	s.comments[comment.ReportID] = append(s.comments[comment.ReportID], comment)
	return comment, nil
}

func (s *MemoryStore) ListComments(_ context.Context, reportID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Comment, len(s.comments[reportID]))
	copy(out, s.comments[reportID])
	return out, nil
}

func (s *MemoryStore) DeleteComment(_ context.Context, reportID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comments := s.comments[reportID]
	for i, comment := range comments {
		if comment.ID == commentID {
			s.comments[reportID] = append(comments[:i], comments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateAttachment(_ context.Context, attachment Attachment) (Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[attachment.ReportID]; !ok {
		return Attachment{}, ErrNotFound
	}
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	if attachment.UploadedAt.IsZero() {
		attachment.UploadedAt = time.Now().UTC()
	}
	s.attachments[attachment.ReportID] = append(s.attachments[attachment.ReportID], attachment)
	return attachment, nil
}

func (s *MemoryStore) GetAttachment(_ context.Context, reportID, attachmentID string) (Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, attachment := range s.attachments[reportID] {
		if attachment.ID == attachmentID {
			return attachment, nil
		}
	}
	return Attachment{}, ErrNotFound
}

func (s *MemoryStore) ListAttachments(_ context.Context, reportID string) ([]Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Attachment, len(s.attachments[reportID]))
	copy(out, s.attachments[reportID])
	return out, nil
}

func (s *MemoryStore) DeleteAttachment(_ context.Context, reportID, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attachments := s.attachments[reportID]
	for i, attachment := range attachments {
		if attachment.ID == attachmentID {
			s.attachments[reportID] = append(attachments[:i], attachments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
