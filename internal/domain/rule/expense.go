package rule

import "time"

// Expense is the snapshot of expense attributes the matcher and planner see.
// Amount is already in the company base currency; conversion happens upstream.
type Expense struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Category      string    `json:"category"`
	Department    string    `json:"department"`
	SubmitterID   string    `json:"submitter_id"`
	SubmitterRole string    `json:"submitter_role"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
