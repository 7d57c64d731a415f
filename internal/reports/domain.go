package reports

import (
	"strings"
	"time"

	"github.com/intelligence-service/platform/internal/errors"
)

// Status is the lifecycle state of an intelligence report.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// Classification marks the sensitivity of a report's content.
type Classification string

const (
	ClassTopSecret    Classification = "top_secret"
	ClassSecret       Classification = "secret"
	ClassConfidential Classification = "confidential"
	ClassUnclassified Classification = "unclassified"
)

func ValidClassification(c Classification) bool {
	switch c {
	case ClassTopSecret, ClassSecret, ClassConfidential, ClassUnclassified:
		return true
	}
	return false
}

// AllowedClassifications returns the report classifications readable at
// the given clearance level. Each level nests the ones below it. Unknown
// clearances grant only unclassified material, so filtering on the result
// never widens access.
func AllowedClassifications(clearance string) []Classification {
	switch clearance {
	case "top_secret":
		return []Classification{ClassTopSecret, ClassSecret, ClassConfidential, ClassUnclassified}
	case "secret":
		return []Classification{ClassSecret, ClassConfidential, ClassUnclassified}
	case "confidential":
		return []Classification{ClassConfidential, ClassUnclassified}
	}
	return []Classification{ClassUnclassified}
}

// CanAccess reports whether clearance grants read access to classification.
func CanAccess(clearance string, classification Classification) bool {
	for _, c := range AllowedClassifications(clearance) {
		if c == classification {
			return true
		}
	}
	return false
}

// Report is an intelligence report.
type Report struct {
	ID               string         `json:"id" db:"id"`
	Title            string         `json:"title" db:"title"`
	Content          string         `json:"content" db:"content"`
	Source           string         `json:"source,omitempty" db:"source"`
	Classification   Classification `json:"classification" db:"classification"`
	Location         string         `json:"location,omitempty" db:"location"`
	Coordinates      string         `json:"coordinates,omitempty" db:"coordinates"`
	ReportDate       time.Time      `json:"report_date" db:"report_date"`
	SubmittedByID    string         `json:"submitted_by_id" db:"submitted_by_id"`
	ApprovedByID     string         `json:"approved_by_id,omitempty" db:"approved_by_id"`
	Status           Status         `json:"status" db:"status"`
	RejectionReason  string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	AIAnalysis       string         `json:"ai_analysis,omitempty" db:"ai_analysis"`
	ThreatLevel      string         `json:"threat_level,omitempty" db:"threat_level"`
	CredibilityScore int            `json:"credibility_score,omitempty" db:"credibility_score"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
	Tags             []string       `json:"tags"`
}

// Comment is a remark attached to a report.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	ReportID  string    `json:"report_id" db:"report_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Attachment is a file stored alongside a report.
type Attachment struct {
	ID           string    `json:"id" db:"id"`
	ReportID     string    `json:"report_id" db:"report_id"`
	Filename     string    `json:"filename" db:"filename"`
	FileType     string    `json:"file_type" db:"file_type"`
	FileSize     int64     `json:"file_size" db:"file_size"`
	FilePath     string    `json:"-" db:"file_path"`
	UploadedByID string    `json:"uploaded_by_id" db:"uploaded_by_id"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// CreateReportInput is the payload for creating a report.
type CreateReportInput struct {
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Source         string         `json:"source,omitempty"`
	Classification Classification `json:"classification"`
	Location       string         `json:"location,omitempty"`
	Coordinates    string         `json:"coordinates,omitempty"`
	ReportDate     *time.Time     `json:"report_date,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
}

func (in CreateReportInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.BadRequest("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return errors.BadRequest("content is required")
	}
	if !ValidClassification(in.Classification) {
		return errors.BadRequest("classification must be one of: top_secret, secret, confidential, unclassified")
	}
	return nil
}

// UpdateReportInput carries optional fields for updating a report. Nil
// pointers leave the corresponding field unchanged.
type UpdateReportInput struct {
	Title          *string         `json:"title,omitempty"`
	Content        *string         `json:"content,omitempty"`
	Source         *string         `json:"source,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Location       *string         `json:"location,omitempty"`
	Coordinates    *string         `json:"coordinates,omitempty"`
	ReportDate     *time.Time      `json:"report_date,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
}

func (in UpdateReportInput) Validate() error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return errors.BadRequest("title cannot be empty")
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return errors.BadRequest("content cannot be empty")
	}
	if in.Classification != nil && !ValidClassification(*in.Classification) {
		return errors.BadRequest("classification must be one of: top_secret, secret, confidential, unclassified")
	}
	return nil
}

// ApprovalInput decides a pending report.
type ApprovalInput struct {
	Approved        bool   `json:"approved"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// ListFilter selects reports in List operations.
type ListFilter struct {
	Status                 Status
	Classification         Classification
	SubmittedBy            string
	ApprovedBy             string
	FromDate               time.Time
	ToDate                 time.Time
	Search                 string
	Tags                   []string
	AllowedClassifications []Classification
	Offset                 int
	Limit                  int
}

// Analysis is the outcome of AI analysis of a report.
type Analysis struct {
	Summary          string              `json:"summary"`
	ThreatLevel      string              `json:"threat_level"`
	CredibilityScore int                 `json:"credibility_score"`
	SuggestedTags    []string            `json:"suggested_tags"`
	Entities         map[string][]string `json:"entities"`
	RelatedReports   []string            `json:"related_reports"`
}
