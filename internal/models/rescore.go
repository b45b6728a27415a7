package models

import "time"

// RescoreRequest selects applications for a rescore batch
type RescoreRequest struct {
	ApplicationIDs []string            `json:"applicationIds"`
	Statuses       []ApplicationStatus `json:"statuses"`
	Limit          int                 `json:"limit"`
	StaleOnly      bool                `json:"staleOnly"`
}

// RescoreFilter is the resolved selection passed to the store.
// When StaleOnly is set, only applications never processed or processed
// before StaleBefore match.
type RescoreFilter struct {
	References  []string
	Statuses    []ApplicationStatus
	StaleOnly   bool
	StaleBefore time.Time
	Limit       int
}

// RescoreSuccess is one successfully rescored application
type RescoreSuccess struct {
	ApplicationID string            `json:"applicationId"`
	Status        ApplicationStatus `json:"status"`
	FinalIndex    *float64          `json:"finalSci"`
}

// RescoreFailure is one application that could not be rescored
type RescoreFailure struct {
	ApplicationID string `json:"applicationId"`
	Error         string `json:"error"`
}

// RescoreSummary is the outcome of one batch
type RescoreSummary struct {
	BatchID   string           `json:"batchId"`
	Processed int              `json:"processed"`
	Successes []RescoreSuccess `json:"successes"`
	Failures  []RescoreFailure `json:"failures"`
}
