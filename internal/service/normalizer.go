package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/loan-service/internal/config"
	"github.com/Dan9191/loan-service/internal/models"
)

// FallbackMessage is shown when no scorer decision is available
const FallbackMessage = "Your application has been queued for manual review."

// Decision is the normalized outcome of one scoring pass
type Decision struct {
	Status         models.ApplicationStatus
	MLProbability  *float64
	CompositeScore *float64
	FinalIndex     *float64
	RiskBand       *string
	RiskCategory   *string
	ApprovedAmount *float64
	Message        string
	Details        json.RawMessage
	LoanToIncome   float64
	HighConfidence bool
}

// Normalizer maps the raw scorer payload onto business policy
type Normalizer struct {
	policy config.Policy
}

// NewNormalizer creates a normalizer for policy
func NewNormalizer(policy config.Policy) *Normalizer {
	return &Normalizer{policy: policy}
}

// LoanToIncome is loanAmount / declaredIncome, or 1 when income is not positive
func LoanToIncome(loanAmount, declaredIncome float64) float64 {
	if declaredIncome <= 0 {
		return 1
	}
	return loanAmount / declaredIncome
}

// MapStatus maps the scorer status tag to an application status
func MapStatus(raw string) models.ApplicationStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return models.StatusApproved
	case "rejected":
		return models.StatusRejected
	default:
		return models.StatusManualReview
	}
}

// Normalize applies, in order: status mapping, loan-to-income, high-confidence
// flooring of the final index, and the lowest-band auto-approval override.
func (n *Normalizer) Normalize(app *models.Application, raw *models.ScoreResult) Decision {
	status := MapStatus(raw.Status)
	lti := LoanToIncome(app.LoanAmount, app.DeclaredIncome)

	finalIndex := raw.FinalSCI
	highConfidence := n.policy.TrustedBorrowers[app.UserID] ||
		(raw.MLProbability >= n.policy.HighConfidenceProbability &&
			raw.CompositeScore >= n.policy.HighConfidenceComposite &&
			lti <= n.policy.HighConfidenceMaxLTI)
	if highConfidence && finalIndex < n.policy.AutoApproveMinIndex {
		finalIndex = n.policy.AutoApproveMinIndex
	}

	message := raw.Message
	lowestBand := strings.EqualFold(strings.TrimSpace(raw.RiskBand), strings.TrimSpace(n.policy.LowestRiskBand))
	if lowestBand && status != models.StatusRejected &&
		(status == models.StatusApproved || highConfidence || finalIndex >= n.policy.AutoApproveMinIndex) {
		status = models.StatusApproved
		message = ""
	}

	d := Decision{
		Status:         status,
		MLProbability:  float64Ptr(raw.MLProbability),
		CompositeScore: float64Ptr(raw.CompositeScore),
		FinalIndex:     float64Ptr(round2(finalIndex)),
		RiskBand:       optionalString(raw.RiskBand),
		RiskCategory:   optionalString(raw.RiskCategory),
		Message:        message,
		Details:        raw.Details,
		LoanToIncome:   round2(lti),
		HighConfidence: highConfidence,
	}
	if status == models.StatusApproved {
		amount := app.LoanAmount
		if raw.LoanOffer != nil && *raw.LoanOffer > 0 {
			amount = *raw.LoanOffer
		}
		d.ApprovedAmount = float64Ptr(round2(amount))
		if d.Message == "" {
			d.Message = fmt.Sprintf("Congratulations! Your loan of %.2f has been approved.", amount)
		}
	}
	if d.Message == "" {
		d.Message = defaultMessage(status)
	}
	return d
}

// FallbackDecision is used when the scorer is unavailable
func FallbackDecision() Decision {
	return Decision{Status: models.StatusManualReview, Message: FallbackMessage}
}

// Apply writes the decision onto app. processedAt is always set; exactly one
// of approvedAt/rejectedAt is set for terminal statuses, neither otherwise.
func (d Decision) Apply(app *models.Application, now time.Time) {
	app.Status = d.Status
	app.MLProbability = d.MLProbability
	app.CompositeScore = d.CompositeScore
	app.FinalIndex = d.FinalIndex
	app.RiskBand = d.RiskBand
	app.RiskCategory = d.RiskCategory
	app.ApprovedAmount = d.ApprovedAmount
	app.Message = d.Message
	app.ScoreDetails = d.Details

	processed := now
	app.ProcessedAt = &processed
	app.ApprovedAt = nil
	app.RejectedAt = nil
	switch d.Status {
	case models.StatusApproved:
		app.ApprovedAt = &processed
	case models.StatusRejected:
		app.RejectedAt = &processed
	}
}

func defaultMessage(status models.ApplicationStatus) string {
	switch status {
	case models.StatusRejected:
		return "We are unable to approve your application at this time."
	default:
		return FallbackMessage
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
