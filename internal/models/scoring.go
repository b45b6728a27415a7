package models

import "encoding/json"

// BankSummary is the bank statement feature summary
type BankSummary struct {
	MonthlyCredits float64 `json:"monthly_credits"`
	AvgBalance     float64 `json:"avg_balance"`
}

// RechargeSummary is the mobile recharge feature summary
type RechargeSummary struct {
	Frequency float64 `json:"frequency"`
	AvgAmount float64 `json:"avg_amount"`
}

// ElectricitySummary is the electricity bill feature summary
type ElectricitySummary struct {
	Frequency   float64 `json:"frequency"`
	AvgPayment  float64 `json:"avg_payment"`
	Consistency float64 `json:"consistency"`
}

// EducationSummary is the education fee feature summary
type EducationSummary struct {
	AvgFee      float64 `json:"avg_fee"`
	Consistency float64 `json:"consistency"`
	OntimeRatio float64 `json:"ontime_ratio"`
	Frequency   float64 `json:"frequency"`
}

// RepaymentSummary is the repayment history feature summary
type RepaymentSummary struct {
	OnTimeRatio         float64 `json:"on_time_ratio"`
	AvgPaymentDelayDays float64 `json:"avg_payment_delay_days"`
	MissedCount         int     `json:"missed_count"`
	AvgRepaymentRatio   float64 `json:"avg_repayment_ratio"`
	PreviousLoansCount  int     `json:"previous_loans_count"`
	TimeSinceLastLoan   float64 `json:"time_since_last_loan"`
}

// ScoreRequest is the body sent to the scoring service. Nil summaries are
// omitted so the scorer sees "no data" instead of zeros.
type ScoreRequest struct {
	ApplicationID           string  `json:"application_id"`
	Age                     int     `json:"age"`
	HasChildren             bool    `json:"has_children"`
	IsSociallyDisadvantaged bool    `json:"is_socially_disadvantaged"`
	DeclaredIncome          float64 `json:"declared_income"`
	LoanAmount              float64 `json:"loan_amount"`
	TenureMonths            int     `json:"tenure_months"`
	Purpose                 string  `json:"purpose"`

	ConsentBankStatement bool `json:"consent_bank_statement"`
	ConsentRecharge      bool `json:"consent_recharge"`
	ConsentElectricity   bool `json:"consent_electricity"`
	ConsentEducation     bool `json:"consent_education"`

	BankStatement    *BankSummary        `json:"bank_statement,omitempty"`
	Recharge         *RechargeSummary    `json:"recharge,omitempty"`
	Electricity      *ElectricitySummary `json:"electricity,omitempty"`
	Education        *EducationSummary   `json:"education,omitempty"`
	RepaymentHistory *RepaymentSummary   `json:"repayment_history,omitempty"`
}

// ScoreResult is the raw decision returned by the scoring service
type ScoreResult struct {
	Status         string          `json:"status"`
	MLProbability  float64         `json:"ml_probability"`
	CompositeScore float64         `json:"composite_score"`
	FinalSCI       float64         `json:"final_sci"`
	RiskBand       string          `json:"risk_band"`
	RiskCategory   string          `json:"risk_category"`
	LoanOffer      *float64        `json:"loan_offer"`
	Message        string          `json:"message"`
	Details        json.RawMessage `json:"details"`
}
