package domain

// OutcomeKind names the terminal result of one submission call.
type OutcomeKind string

const (
	OutcomeUploaded     OutcomeKind = "uploaded"
	OutcomePartial      OutcomeKind = "partial"
	OutcomeFailed       OutcomeKind = "failed"
	OutcomeSavedOffline OutcomeKind = "saved_offline"
	OutcomeLocked       OutcomeKind = "locked"
)

// SubmitOutcome is the structured result of Submit, returned alongside any error.
type SubmitOutcome struct {
	Category  Category      `json:"category"`
	Kind      OutcomeKind   `json:"kind"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    []ItemFailure `json:"failed,omitempty"`
	Total     int64         `json:"total"`
	Queued    int           `json:"queued,omitempty"`
	Aborted   bool          `json:"aborted,omitempty"`
}

// FailedDonors lists the donors whose writes failed, in batch order.
func (o SubmitOutcome) FailedDonors() []string {
	names := make([]string, 0, len(o.Failed))
	for _, f := range o.Failed {
		names = append(names, f.DonorName)
	}
	return names
}
