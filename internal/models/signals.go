package models

import "time"

// BankStatement is one dated bank statement line
type BankStatement struct {
	ID            int64     `json:"-"`
	ApplicationID int64     `json:"-"`
	Date          time.Time `json:"date"`
	Credit        float64   `json:"credit"`
	Debit         float64   `json:"debit"`
	Balance       float64   `json:"balance"`
}

// RechargeRecord is one mobile recharge
type RechargeRecord struct {
	ID            int64     `json:"-"`
	ApplicationID int64     `json:"-"`
	Date          time.Time `json:"date"`
	Amount        float64   `json:"amount"`
}

// ElectricityBill is one paid electricity bill
type ElectricityBill struct {
	ID            int64     `json:"-"`
	ApplicationID int64     `json:"-"`
	BillDate      time.Time `json:"billDate"`
	Amount        float64   `json:"amount"`
	IsLate        bool      `json:"isLate"`
}

// EducationFee is one tuition or school fee payment
type EducationFee struct {
	ID            int64     `json:"-"`
	ApplicationID int64     `json:"-"`
	PaymentDate   time.Time `json:"paymentDate"`
	Amount        float64   `json:"amount"`
	IsLate        bool      `json:"isLate"`
}

// RepaymentRecord is one installment of a previous loan
type RepaymentRecord struct {
	ID            int64      `json:"-"`
	ApplicationID int64      `json:"-"`
	LoanRef       string     `json:"loanRef"`
	DueDate       time.Time  `json:"dueDate"`
	PaidDate      *time.Time `json:"paidDate"`
	AmountDue     float64    `json:"amountDue"`
	AmountPaid    float64    `json:"amountPaid"`
	Paid          bool       `json:"paid"`
	IsLate        bool       `json:"isLate"`
	DaysLate      int        `json:"daysLate"`
}

// SignalSet groups the consent-gated records of one application
type SignalSet struct {
	BankStatements []BankStatement   `json:"bankStatements"`
	Recharges      []RechargeRecord  `json:"recharges"`
	Electricity    []ElectricityBill `json:"electricityBills"`
	Education      []EducationFee    `json:"educationFees"`
	Repayments     []RepaymentRecord `json:"repaymentHistory"`
}

// Counts returns the number of records per signal type
func (s *SignalSet) Counts() map[string]int {
	return map[string]int{
		"bankStatements":   len(s.BankStatements),
		"recharges":        len(s.Recharges),
		"electricityBills": len(s.Electricity),
		"educationFees":    len(s.Education),
		"repaymentHistory": len(s.Repayments),
	}
}

// DropAlternativeProxies discards recharge, electricity and education records
func (s *SignalSet) DropAlternativeProxies() {
	s.Recharges = nil
	s.Electricity = nil
	s.Education = nil
}
