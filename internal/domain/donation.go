package domain

import "time"

// DonationDraft is one locally held contribution that has not been confirmed by the server.
type DonationDraft struct {
	DonorName string    `json:"donor_name"`
	Amount    int64     `json:"amount"`
	EnteredAt time.Time `json:"entered_at"`
}

// DraftStatus tags a draft with the result of the last submission batch that included it.
type DraftStatus string

const (
	DraftPending  DraftStatus = "pending"
	DraftAccepted DraftStatus = "accepted"
	DraftFailed   DraftStatus = "failed"
)

// DonationPayload is the JSON body of POST /donasi.
type DonationPayload struct {
	NamaDonatur  string `json:"nama_donatur"`
	KategoriRT   string `json:"kategori_rt"`
	Nominal      int64  `json:"nominal"`
	TanggalInput string `json:"tanggal_input"`
}

// NewDonationPayload builds the wire payload for a draft entered into category c.
func NewDonationPayload(c Category, d DonationDraft, at time.Time) DonationPayload {
	return DonationPayload{
		NamaDonatur:  d.DonorName,
		KategoriRT:   c.Label(),
		Nominal:      d.Amount,
		TanggalInput: at.UTC().Format(time.RFC3339Nano),
	}
}
