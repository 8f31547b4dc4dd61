package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthOverview is a compact summary of projected payments for a year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Currency   string
	Total      decimal.Decimal
	Payments   int
	ByCategory []CategoryAmount
}
