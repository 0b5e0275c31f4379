package repository

import (
	"context"
	"database/sql"

	"github.com/davidromero/mercadillo/internal/model"
)

// ReportRepo persists moderation reports.
type ReportRepo struct{ db *sql.DB }

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// Create inserts a report in the open state and returns its ID.
func (r *ReportRepo) Create(ctx context.Context, rep *model.Report) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO reports (reporter_id, kind, product_id, user_id, comment_id, reason, detail) VALUES (?,?,?,?,?,?,?)",
		rep.ReporterID, rep.Kind, rep.ProductID, rep.UserID, rep.CommentID, rep.Reason, rep.Detail)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// ListByReporter returns the reports a user has filed, newest first.
func (r *ReportRepo) ListByReporter(ctx context.Context, reporterID uint64) ([]model.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,reporter_id,kind,product_id,user_id,comment_id,reason,detail,status,created_at FROM reports WHERE reporter_id=? ORDER BY created_at DESC",
		reporterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		var (
			rep           model.Report
			pID, uID, cID sql.NullInt64
		)
		if err := rows.Scan(&rep.ID, &rep.ReporterID, &rep.Kind, &pID, &uID, &cID,
			&rep.Reason, &rep.Detail, &rep.Status, &rep.CreatedAt); err != nil {
			return nil, err
		}
		if pID.Valid {
			v := uint64(pID.Int64)
			rep.ProductID = &v
		}
		if uID.Valid {
			v := uint64(uID.Int64)
			rep.UserID = &v
		}
		if cID.Valid {
			v := uint64(cID.Int64)
			rep.CommentID = &v
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
