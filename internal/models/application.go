package models

import (
	"encoding/json"
	"time"
)

// ApplicationStatus is the lifecycle state of a loan application
type ApplicationStatus string

const (
	StatusPending      ApplicationStatus = "PENDING"
	StatusProcessing   ApplicationStatus = "PROCESSING"
	StatusApproved     ApplicationStatus = "APPROVED"
	StatusRejected     ApplicationStatus = "REJECTED"
	StatusManualReview ApplicationStatus = "MANUAL_REVIEW"
)

// Valid reports whether s is a known status
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusApproved, StatusRejected, StatusManualReview:
		return true
	}
	return false
}

// Consents are the data-sharing permissions granted on an application
type Consents struct {
	BankStatement bool `json:"bankStatement"`
	Recharge      bool `json:"recharge"`
	Electricity   bool `json:"electricity"`
	Education     bool `json:"education"`
}

// WithoutAlternativeProxies keeps only the bank statement consent
func (c Consents) WithoutAlternativeProxies() Consents {
	return Consents{BankStatement: c.BankStatement}
}

// Application represents one loan request
type Application struct {
	ID             int64             `json:"-"`
	Reference      string            `json:"reference"`
	UserID         int64             `json:"userId"`
	DeclaredIncome float64           `json:"declaredIncome"`
	LoanAmount     float64           `json:"loanAmount"`
	TenureMonths   int               `json:"tenureMonths"`
	Purpose        string            `json:"purpose"`
	Consents       Consents          `json:"consents"`
	Status         ApplicationStatus `json:"status"`
	RiskBand       *string           `json:"riskBand"`
	RiskCategory   *string           `json:"riskCategory"`
	CompositeScore *float64          `json:"compositeScore"`
	MLProbability  *float64          `json:"mlProbability"`
	FinalIndex     *float64          `json:"finalSci"`
	ApprovedAmount *float64          `json:"approvedAmount"`
	Message        string            `json:"message"`
	ScoreDetails   json.RawMessage   `json:"scoreDetails,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	SubmittedAt    *time.Time        `json:"submittedAt"`
	ProcessedAt    *time.Time        `json:"processedAt"`
	ApprovedAt     *time.Time        `json:"approvedAt"`
	RejectedAt     *time.Time        `json:"rejectedAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}
