package repo

import (
	"context"

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
	"jimpitan/internal/sqlinline"
)

// UploadDateRepositorySQL stores the category→last-upload-date fallback map.
type UploadDateRepositorySQL struct {
	sql infra.SQLExecutor
}

// NewUploadDateRepository creates a new fallback date repo.
func NewUploadDateRepository(sql infra.SQLExecutor) *UploadDateRepositorySQL {
	return &UploadDateRepositorySQL{sql: sql}
}

// LastUploadDates returns the stored dates keyed by category. Rows with an
// unknown category are skipped.
func (r *UploadDateRepositorySQL) LastUploadDates(ctx context.Context) (map[domain.Category]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectUploadDates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make(map[domain.Category]string)
	for rows.Next() {
		var category, date string
		if err := rows.Scan(&category, &date); err != nil {
			return nil, err
		}
		c := domain.Category(category)
		if !c.Valid() {
			continue
		}
		dates[c] = date
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dates, nil
}

// SetLastUploadDate records date (YYYY-MM-DD) for category c.
func (r *UploadDateRepositorySQL) SetLastUploadDate(ctx context.Context, c domain.Category, date string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertUploadDate, string(c), date)
	return err
}

// Clear drops every stored date.
func (r *UploadDateRepositorySQL) Clear(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteUploadDates)
	return err
}

var _ domain.UploadDateRepository = (*UploadDateRepositorySQL)(nil)
