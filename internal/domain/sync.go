package domain

import (
	"encoding/json"
	"time"
)

// SyncType enumerates the kinds of deferred writes held in the durable queue.
type SyncType string

const (
	SyncTypeDonation SyncType = "donation"
)

// PendingSyncItem is one durable record of a write that could not reach the server.
// Items are inserted and deleted, never updated.
type PendingSyncItem struct {
	ID             int64
	IdempotencyKey string
	Type           SyncType
	Endpoint       string
	Method         string
	Payload        json.RawMessage
	CreatedAt      time.Time
}

// UploadState is the gatekeeper state of one category for the current local day.
type UploadState string

const (
	UploadUnknown UploadState = "unknown"
	UploadReady   UploadState = "ready"
	UploadLocked  UploadState = "locked"
)

// CategoryUploadState is the per-category snapshot exposed to collaborators.
type CategoryUploadState struct {
	Category       Category    `json:"category"`
	State          UploadState `json:"state"`
	UploadedToday  bool        `json:"uploaded_today"`
	LastUploadDate string      `json:"last_upload_date,omitempty"`
}
