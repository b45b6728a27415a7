package service

import (
	"math"
	"time"

	"github.com/Dan9191/loan-service/internal/models"
)

// NoPriorLoanMonths is sent as time_since_last_loan when no dated prior
// loan exists, meaning "no prior loan" rather than "recent loan".
const NoPriorLoanMonths = 999

// BuildScoreRequest assembles the scorer payload for an application.
// Signals without records, or without the matching consent, are omitted.
// High-income applications never carry alternative-proxy summaries.
func BuildScoreRequest(user *models.User, app *models.Application, signals *models.SignalSet, highIncome bool, now time.Time) *models.ScoreRequest {
	consents := app.Consents
	if highIncome {
		consents = consents.WithoutAlternativeProxies()
	}

	req := &models.ScoreRequest{
		ApplicationID:        app.Reference,
		DeclaredIncome:       app.DeclaredIncome,
		LoanAmount:           app.LoanAmount,
		TenureMonths:         app.TenureMonths,
		Purpose:              app.Purpose,
		ConsentBankStatement: consents.BankStatement,
		ConsentRecharge:      consents.Recharge,
		ConsentElectricity:   consents.Electricity,
		ConsentEducation:     consents.Education,
	}
	if user != nil {
		req.Age = user.Age
		req.HasChildren = user.HasChildren
		req.IsSociallyDisadvantaged = user.IsSociallyDisadvantaged
	}
	if signals == nil {
		return req
	}

	if consents.BankStatement {
		req.BankStatement = SummarizeBankStatements(signals.BankStatements)
	}
	if consents.Recharge {
		req.Recharge = SummarizeRecharges(signals.Recharges)
	}
	if consents.Electricity {
		req.Electricity = SummarizeElectricity(signals.Electricity)
	}
	if consents.Education {
		req.Education = SummarizeEducation(signals.Education)
	}
	req.RepaymentHistory = SummarizeRepayments(signals.Repayments, now)
	return req
}

// SummarizeBankStatements returns nil for no records
func SummarizeBankStatements(records []models.BankStatement) *models.BankSummary {
	if len(records) == 0 {
		return nil
	}
	var credits, balances float64
	months := monthSet{}
	for _, r := range records {
		credits += r.Credit
		balances += r.Balance
		months.add(r.Date)
	}
	return &models.BankSummary{
		MonthlyCredits: round2(credits / months.count()),
		AvgBalance:     round2(balances / float64(len(records))),
	}
}

// SummarizeRecharges returns nil for no records
func SummarizeRecharges(records []models.RechargeRecord) *models.RechargeSummary {
	if len(records) == 0 {
		return nil
	}
	amounts := make([]float64, len(records))
	months := monthSet{}
	for i, r := range records {
		amounts[i] = r.Amount
		months.add(r.Date)
	}
	return &models.RechargeSummary{
		Frequency: round2(float64(len(records)) / months.count()),
		AvgAmount: round2(mean(amounts)),
	}
}

// SummarizeElectricity returns nil for no records
func SummarizeElectricity(records []models.ElectricityBill) *models.ElectricitySummary {
	if len(records) == 0 {
		return nil
	}
	payments := make([]float64, len(records))
	months := monthSet{}
	for i, r := range records {
		payments[i] = r.Amount
		months.add(r.BillDate)
	}
	return &models.ElectricitySummary{
		Frequency:   round2(float64(len(records)) / months.count()),
		AvgPayment:  round2(mean(payments)),
		Consistency: round2(paymentConsistency(payments)),
	}
}

// SummarizeEducation returns nil for no records
func SummarizeEducation(records []models.EducationFee) *models.EducationSummary {
	if len(records) == 0 {
		return nil
	}
	fees := make([]float64, len(records))
	months := monthSet{}
	onTime := 0
	for i, r := range records {
		fees[i] = r.Amount
		months.add(r.PaymentDate)
		if !r.IsLate {
			onTime++
		}
	}
	ratio := round2(float64(onTime) / float64(len(records)))
	return &models.EducationSummary{
		AvgFee:      round2(mean(fees)),
		Consistency: ratio,
		OntimeRatio: ratio,
		Frequency:   round2(float64(len(records)) / months.count()),
	}
}

// SummarizeRepayments returns nil for no records
func SummarizeRepayments(records []models.RepaymentRecord, now time.Time) *models.RepaymentSummary {
	if len(records) == 0 {
		return nil
	}
	var (
		onTime, missed int
		delay, ratio   float64
		latest         time.Time
	)
	loans := map[string]struct{}{}
	for _, r := range records {
		if r.Paid && !r.IsLate {
			onTime++
		}
		if !r.Paid {
			missed++
		}
		delay += float64(r.DaysLate)
		switch {
		case r.AmountDue > 0:
			ratio += r.AmountPaid / r.AmountDue
		case r.Paid:
			ratio++
		}
		loans[r.LoanRef] = struct{}{}

		if r.DueDate.After(latest) {
			latest = r.DueDate
		}
		if r.PaidDate != nil && r.PaidDate.After(latest) {
			latest = *r.PaidDate
		}
	}

	n := float64(len(records))
	sinceLast := float64(NoPriorLoanMonths)
	if !latest.IsZero() {
		sinceLast = math.Max(0, now.Sub(latest).Hours()/24/30)
	}
	return &models.RepaymentSummary{
		OnTimeRatio:         round2(float64(onTime) / n),
		AvgPaymentDelayDays: round2(delay / n),
		MissedCount:         missed,
		AvgRepaymentRatio:   round2(ratio / n),
		PreviousLoansCount:  len(loans),
		TimeSinceLastLoan:   round2(sinceLast),
	}
}

// paymentConsistency is max(0, 1 - stddev/mean), 0.5 when stddev is undefined
func paymentConsistency(values []float64) float64 {
	if len(values) < 2 {
		return 0.5
	}
	m := mean(values)
	if m == 0 {
		return 0
	}
	return math.Max(0, 1-stddev(values, m)/m)
}

type monthSet map[int]struct{}

func (s monthSet) add(t time.Time) {
	s[t.Year()*12+int(t.Month())] = struct{}{}
}

func (s monthSet) count() float64 {
	if len(s) == 0 {
		return 1
	}
	return float64(len(s))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation
func stddev(values []float64, m float64) float64 {
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
