package domain

import "time"

// Market is metadata for a Polymarket binary market as served by the Gamma
// API, trimmed to the fields the browsing and replay views need.
type Market struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	ConditionID string    `json:"conditionId"`
	Description string    `json:"description"`
	Outcomes    []string  `json:"outcomes"`     // e.g. ["Yes","No"]
	TokenIDs    []string  `json:"clobTokenIds"` // one CLOB token per outcome
	Prices      []float64 `json:"outcomePrices"`
	Volume      float64   `json:"volume"`
	Volume24hr  float64   `json:"volume24hr"`
	Liquidity   float64   `json:"liquidity"`
	Image       string    `json:"image"`
	Category    string    `json:"category"`
	Active      bool      `json:"active"`
	Closed      bool      `json:"closed"`
	EndDate     string    `json:"endDate"`
}

// TrackedMarket is a market under periodic observation by the ingestion
// job. Tracking is created on an explicit user action and stopped by
// deactivation; rows are never hard-deleted.
type TrackedMarket struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Question    string    `json:"question"`
	ConditionID string    `json:"conditionId"`
	TokenIDYes  string    `json:"tokenIdYes"`
	TokenIDNo   string    `json:"tokenIdNo"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
