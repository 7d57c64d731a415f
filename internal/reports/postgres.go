package reports

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store backed by PostgreSQL via sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateReport(ctx context.Context, report Report) (Report, error) {
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

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO report (id, title, content, source, classification, location, coordinates,
			report_date, submitted_by_id, approved_by_id, status, rejection_reason,
			ai_analysis, threat_level, credibility_score, created_at, updated_at)
		VALUES (:id, :title, :content, :source, :classification, :location, :coordinates,
			:report_date, :submitted_by_id, :approved_by_id, :status, :rejection_reason,
			:ai_analysis, :threat_level, :credibility_score, :created_at, :updated_at)
	`, report)
	if err != nil {
		return Report{}, err
	}
	if len(report.Tags) > 0 {
		if err := s.SetTags(ctx, report.ID, report.Tags); err != nil {
			return Report{}, err
		}
	} else {
		report.Tags = []string{}
	}
	return report, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (Report, error) {
	var report Report
	err := s.db.GetContext(ctx, &report, `SELECT * FROM report WHERE id = $1`, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	tags, err := s.tagsFor(ctx, []string{id})
	if err != nil {
		return Report{}, err
	}
	report.Tags = tags[id]
	if report.Tags == nil {
		report.Tags = []string{}
	}
	return report, nil
}

func (s *PostgresStore) UpdateReport(ctx context.Context, report Report) (Report, error) {
	report.UpdatedAt = time.Now().UTC()
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE report
		SET title = :title, content = :content, source = :source, classification = :classification,
			location = :location, coordinates = :coordinates, report_date = :report_date,
			approved_by_id = :approved_by_id, status = :status, rejection_reason = :rejection_reason,
			ai_analysis = :ai_analysis, threat_level = :threat_level,
			credibility_score = :credibility_score, updated_at = :updated_at
		WHERE id = :id
	`, report)
	if err != nil {
		return Report{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return Report{}, ErrNotFound
	}
	if report.Tags != nil {
		if err := s.SetTags(ctx, report.ID, report.Tags); err != nil {
			return Report{}, err
		}
	}
	return report, nil
}

func (s *PostgresStore) DeleteReport(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM report WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ListFilter) ([]Report, int, error) {
	where, args := buildReportFilter(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(DISTINCT r.id) FROM report r`+where), args...); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := s.db.Rebind(fmt.Sprintf(
		`SELECT DISTINCT r.* FROM report r%s ORDER BY r.report_date DESC, r.id LIMIT %d OFFSET %d`,
		where, limit, filter.Offset))

	var items []Report
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return []Report{}, total, nil
	}

	ids := make([]string, len(items))
	for i, r := range items {
		ids[i] = r.ID
	}
	tags, err := s.tagsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Tags = tags[items[i].ID]
		if items[i].Tags == nil {
			items[i].Tags = []string{}
		}
	}
	return items, total, nil
}

func buildReportFilter(filter ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if len(filter.Tags) > 0 {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM report_tag rt JOIN tag t ON t.id = rt.tag_id
			WHERE rt.report_id = r.id AND t.name IN (?))`)
		args = append(args, filter.Tags)
	}
	if filter.Status != "" {
		conds = append(conds, "r.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Classification != "" {
		conds = append(conds, "r.classification = ?")
		args = append(args, filter.Classification)
	}
	if filter.SubmittedBy != "" {
		conds = append(conds, "r.submitted_by_id = ?")
		args = append(args, filter.SubmittedBy)
	}
	if filter.ApprovedBy != "" {
		conds = append(conds, "r.approved_by_id = ?")
		args = append(args, filter.ApprovedBy)
	}
	if !filter.FromDate.IsZero() {
		conds = append(conds, "r.report_date >= ?")
		args = append(args, filter.FromDate)
	}
	if !filter.ToDate.IsZero() {
		conds = append(conds, "r.report_date <= ?")
		args = append(args, filter.ToDate)
	}
	if filter.Search != "" {
		conds = append(conds, "(r.title ILIKE ? OR r.content ILIKE ? OR r.location ILIKE ?)")
		term := "%" + filter.Search + "%"
		args = append(args, term, term, term)
	}
	if len(filter.AllowedClassifications) > 0 {
		conds = append(conds, "r.classification IN (?)")
		args = append(args, filter.AllowedClassifications)
	}

	if len(conds) == 0 {
		return "", nil
	}
	query, expanded, err := sqlx.In(" WHERE "+strings.Join(conds, " AND "), args...)
	if err != nil {
		// Only reachable with an empty IN slice, which the guards above prevent.
		return " WHERE 1=0", nil
	}
	return query, expanded
}

func (s *PostgresStore) tagsFor(ctx context.Context, reportIDs []string) (map[string][]string, error) {
	query, args, err := sqlx.In(`
		SELECT rt.report_id, t.name
		FROM report_tag rt
		JOIN tag t ON t.id = rt.tag_id
		WHERE rt.report_id IN (?)
		ORDER BY t.name
	`, reportIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var reportID, name string
		if err := rows.Scan(&reportID, &name); err != nil {
			return nil, err
		}
		out[reportID] = append(out[reportID], name)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetTags(ctx context.Context, reportID string, tags []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_tag WHERE report_id = $1`, reportID); err != nil {
		return err
	}
	if err := addTagsTx(ctx, tx, reportID, tags); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) AddTags(ctx context.Context, reportID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := addTagsTx(ctx, tx, reportID, tags); err != nil {
		return err
	}
	return tx.Commit()
}

func addTagsTx(ctx context.Context, tx *sqlx.Tx, reportID string, tags []string) error {
	for _, name := range tags {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		var tagID string
		err := tx.GetContext(ctx, &tagID, `
			INSERT INTO tag (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, uuid.NewString(), name)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO report_tag (report_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, reportID, tagID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListTags(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM tag ORDER BY name`); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO comment (id, report_id, user_id, content, created_at, updated_at)
		VALUES (:id, :report_id, :user_id, :content, :created_at, :updated_at)
	`, comment)
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, reportID string) ([]Comment, error) {
	var comments []Comment
	err := s.db.SelectContext(ctx, &comments, `
		SELECT * FROM comment WHERE report_id = $1 ORDER BY created_at
	`, reportID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, reportID, commentID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM comment WHERE id = $1 AND report_id = $2
	`, commentID, reportID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error) {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	if attachment.UploadedAt.IsZero() {
		attachment.UploadedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO attachment (id, report_id, filename, file_type, file_size, file_path, uploaded_by_id, uploaded_at)
		VALUES (:id, :report_id, :filename, :file_type, :file_size, :file_path, :uploaded_by_id, :uploaded_at)
	`, attachment)
	if err != nil {
		return Attachment{}, err
	}
	return attachment, nil
}

func (s *PostgresStore) GetAttachment(ctx context.Context, reportID, attachmentID string) (Attachment, error) {
	var attachment Attachment
	err := s.db.GetContext(ctx, &attachment, `
		SELECT * FROM attachment WHERE id = $1 AND report_id = $2
	`, attachmentID, reportID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Attachment{}, ErrNotFound
		}
		return Attachment{}, err
	}
	return attachment, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, reportID string) ([]Attachment, error) {
	var attachments []Attachment
	err := s.db.SelectContext(ctx, &attachments, `
		SELECT * FROM attachment WHERE report_id = $1 ORDER BY uploaded_at
	`, reportID)
	if err != nil {
		return nil, err
	}
	if attachments == nil {
		attachments = []Attachment{}
	}
	return attachments, nil
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, reportID, attachmentID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM attachment WHERE id = $1 AND report_id = $2
	`, attachmentID, reportID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
