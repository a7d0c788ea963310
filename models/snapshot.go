package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// Snapshot is the realtime quote block emitted as realtime_data.
type Snapshot struct {
	Ticker        string      `json:"ticker"`
	CompanyName   null.String `json:"company_name"`
	CurrentPrice  null.Float  `json:"current_price"`
	PreviousClose null.Float  `json:"previous_close"`
	Change        null.Float  `json:"change"`
	ChangePercent null.Float  `json:"change_percent"`
	MarketCap     null.Int    `json:"market_cap"`
	Volume        null.Int    `json:"volume"`
	Time          string      `json:"time"`
	Error         string      `json:"error,omitempty"`
}

// NewSnapshot fills the derived change fields. Change is only defined when both
// prices are known and the previous close is positive.
func NewSnapshot(ticker, company string, price, prevClose null.Float, marketCap, volume null.Int, at time.Time) *Snapshot {
	s := &Snapshot{
		Ticker:        ticker,
		CompanyName:   null.NewString(company, company != ""),
		CurrentPrice:  price,
		PreviousClose: prevClose,
		MarketCap:     marketCap,
		Volume:        volume,
		Time:          at.Format(DateTimeLayout),
	}
	if price.Valid && prevClose.Valid && prevClose.Float64 > 0 {
		change := price.Float64 - prevClose.Float64
		s.Change = null.FloatFrom(change)
		s.ChangePercent = null.FloatFrom(change / prevClose.Float64 * 100)
	}
	return s
}

// FailedSnapshot records a quote lookup that did not succeed without dropping the symbol.
func FailedSnapshot(ticker string, err error, at time.Time) *Snapshot {
	return &Snapshot{
		Ticker: ticker,
		Time:   at.Format(DateTimeLayout),
		Error:  err.Error(),
	}
}
