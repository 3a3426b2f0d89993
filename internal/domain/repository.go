package domain

import "context"

// PendingRepository persists PendingSyncItem rows.
type PendingRepository interface {
	Insert(ctx context.Context, items ...PendingSyncItem) error
	ListAll(ctx context.Context) ([]PendingSyncItem, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	MaxID(ctx context.Context) (int64, error)
}

// UploadDateRepository persists the category→last-upload-date fallback map.
type UploadDateRepository interface {
	LastUploadDates(ctx context.Context) (map[Category]string, error)
	SetLastUploadDate(ctx context.Context, c Category, date string) error
	Clear(ctx context.Context) error
}
