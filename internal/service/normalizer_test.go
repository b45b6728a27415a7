package service

import (
	"testing"

	"github.com/Dan9191/loan-service/internal/config"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanToIncome(t *testing.T) {
	assert.Equal(t, 0.5, LoanToIncome(2000, 4000))
	assert.Equal(t, 1.0, LoanToIncome(2000, 0))
	assert.Equal(t, 1.0, LoanToIncome(2000, -5))
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, models.StatusApproved, MapStatus("approved"))
	assert.Equal(t, models.StatusApproved, MapStatus(" APPROVED "))
	assert.Equal(t, models.StatusRejected, MapStatus("Rejected"))
	assert.Equal(t, models.StatusManualReview, MapStatus("review"))
	assert.Equal(t, models.StatusManualReview, MapStatus(""))
}

func TestNormalize_HighConfidenceFloorsIndex(t *testing.T) {
	n := NewNormalizer(config.DefaultPolicy())
	app := &models.Application{DeclaredIncome: 5000, LoanAmount: 2000}

	d := n.Normalize(app, &models.ScoreResult{
		Status:         "review",
		MLProbability:  0.9,
		CompositeScore: 70,
		FinalSCI:       50,
		RiskBand:       "Medium",
	})

	assert.True(t, d.HighConfidence)
	require.NotNil(t, d.FinalIndex)
	assert.Equal(t, 80.0, *d.FinalIndex)
	assert.Equal(t, 0.4, d.LoanToIncome)
	assert.Equal(t, models.StatusManualReview, d.Status, "band is not the lowest one")
	assert.Nil(t, d.ApprovedAmount)
}

func TestNormalize_HighConfidenceNeverLowersIndex(t *testing.T) {
	n := NewNormalizer(config.DefaultPolicy())
	app := &models.Application{DeclaredIncome: 5000, LoanAmount: 2000}

	d := n.Normalize(app, &models.ScoreResult{Status: "review", MLProbability: 0.95, CompositeScore: 90, FinalSCI: 91.456, RiskBand: "Medium"})

	assert.Equal(t, 91.46, *d.FinalIndex)
}

func TestNormalize_NotHighConfidence(t *testing.T) {
	n := NewNormalizer(config.DefaultPolicy())
	tests := []struct {
		name   string
		app    models.Application
		result models.ScoreResult
	}{
		{"low probability", models.Application{DeclaredIncome: 5000, LoanAmount: 2000}, models.ScoreResult{MLProbability: 0.8, CompositeScore: 70, FinalSCI: 50}},
		{"low composite", models.Application{DeclaredIncome: 5000, LoanAmount: 2000}, models.ScoreResult{MLProbability: 0.9, CompositeScore: 59, FinalSCI: 50}},
		{"high loan to income", models.Application{DeclaredIncome: 1000, LoanAmount: 2000}, models.ScoreResult{MLProbability: 0.9, CompositeScore: 70, FinalSCI: 50}},
		{"zero income", models.Application{LoanAmount: 2000}, models.ScoreResult{MLProbability: 0.9, CompositeScore: 70, FinalSCI: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := n.Normalize(&tt.app, &tt.result)
			assert.False(t, d.HighConfidence)
			assert.Equal(t, 50.0, *d.FinalIndex)
		})
	}
}

func TestNormalize_TrustedBorrowerIsHighConfidence(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.TrustedBorrowers = map[int64]bool{42: true}
	n := NewNormalizer(policy)
	app := &models.Application{UserID: 42, DeclaredIncome: 1000, LoanAmount: 5000}

	d := n.Normalize(app, &models.ScoreResult{Status: "review", MLProbability: 0.1, FinalSCI: 20, RiskBand: "Very Low"})

	assert.True(t, d.HighConfidence)
	assert.Equal(t, 80.0, *d.FinalIndex)
	assert.Equal(t, models.StatusApproved, d.Status)
}

func TestNormalize_LowestBandAutoApproves(t *testing.T) {
	n := NewNormalizer(config.DefaultPolicy())
	app := &models.Application{DeclaredIncome: 1000, LoanAmount: 3000}

	d := n.Normalize(app, &models.ScoreResult{
		Status:   "manual_review",
		FinalSCI: 85,
		RiskBand: "very low",
		Message:  "Needs a second look",
	})

	assert.Equal(t, models.StatusApproved, d.Status)
	require.NotNil(t, d.ApprovedAmount)
	assert.Equal(t, 3000.0, *d.ApprovedAmount)
	assert.Contains(t, d.Message, "3000.00")
	assert.NotContains(t, d.Message, "second look")
}

func TestNormalize_ApprovedAmountPrefersOffer(t *testing.T) {
	n := NewNormalizer(config.DefaultPolicy())
	app := &models.Application{DeclaredIncome: 1000, LoanAmount: 3000}
	offer := 2500.0

	d := n.Normalize(app, &models.ScoreResult{Status: "approved", FinalSCI: 70, RiskBand: "Low", LoanOffer: &offer, Message: "ok"})

	assert.Equal(t, models.StatusApproved, d.Status)
	assert.Equal(t, 2500.0, *d.ApprovedAmount)
	assert.Equal(t, "ok", d.Message)
}

func TestNormalize_LowestBandBelowThresholdStaysInReview(t *testing.T) {
	n := NewNormalizer(config.DefaultPolicy())
	app := &models.Application{DeclaredIncome: 1000, LoanAmount: 3000}

	d := n.Normalize(app, &models.ScoreResult{Status: "review", FinalSCI: 79.9, RiskBand: "Very Low"})

	assert.Equal(t, models.StatusManualReview, d.Status)
	assert.Equal(t, FallbackMessage, d.Message)
}

func TestNormalize_RejectionIsNeverOverridden(t *testing.T) {
	n := NewNormalizer(config.DefaultPolicy())
	app := &models.Application{DeclaredIncome: 5000, LoanAmount: 1000}

	d := n.Normalize(app, &models.ScoreResult{
		Status:         "rejected",
		MLProbability:  0.99,
		CompositeScore: 99,
		FinalSCI:       95,
		RiskBand:       "Very Low",
	})

	assert.Equal(t, models.StatusRejected, d.Status)
	assert.Nil(t, d.ApprovedAmount)
	assert.NotEmpty(t, d.Message)
}

func TestDecisionApply_Timestamps(t *testing.T) {
	tests := []struct {
		status   models.ApplicationStatus
		approved bool
		rejected bool
	}{
		{models.StatusApproved, true, false},
		{models.StatusRejected, false, true},
		{models.StatusManualReview, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			prev := fixedNow.AddDate(0, 0, -3)
			app := &models.Application{ApprovedAt: &prev, RejectedAt: &prev}

			Decision{Status: tt.status, Message: "m"}.Apply(app, fixedNow)

			require.NotNil(t, app.ProcessedAt)
			assert.Equal(t, fixedNow, *app.ProcessedAt)
			assert.Equal(t, tt.approved, app.ApprovedAt != nil)
			assert.Equal(t, tt.rejected, app.RejectedAt != nil)
			assert.Equal(t, tt.status, app.Status)
		})
	}
}

func TestFallbackDecision(t *testing.T) {
	d := FallbackDecision()
	app := &models.Application{}
	d.Apply(app, fixedNow)

	assert.Equal(t, models.StatusManualReview, app.Status)
	assert.Equal(t, FallbackMessage, app.Message)
	assert.Nil(t, app.FinalIndex)
	assert.NotNil(t, app.ProcessedAt)
}
