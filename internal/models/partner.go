package models

// LoanContext carries the loan terms for a partner-created application
type LoanContext struct {
	DeclaredIncome float64 `json:"declaredIncome"`
	LoanAmount     float64 `json:"loanAmount"`
	TenureMonths   int     `json:"tenureMonths"`
	Purpose        string  `json:"purpose"`
}

// PartnerIngestRequest is one partner data batch. Either ApplicationID
// targets an existing application or BeneficiaryUserID plus LoanContext
// creates a new one.
type PartnerIngestRequest struct {
	PartnerID         string       `json:"partnerId"`
	ApplicationID     string       `json:"applicationId"`
	BeneficiaryUserID int64        `json:"beneficiaryUserId"`
	LoanContext       *LoanContext `json:"loanContext"`
	Signals           SignalSet    `json:"signals"`
}

// PartnerIngestResult reports what was stored for a batch
type PartnerIngestResult struct {
	IngestID    string         `json:"ingestId"`
	Application *Application   `json:"application"`
	Counts      map[string]int `json:"counts"`
	Created     bool           `json:"created"`
}
