// Package interfaces defines the contracts between Novus components.
package interfaces

import (
	"context"

	"github.com/bobmcallan/novus/internal/models"
)

// QuoteSource provides equity, FX and commodity prices (Yahoo Finance).
type QuoteSource interface {
	// GetSeries returns the ascending close series for symbol over the
	// given range ("6mo", "10y") and interval ("1d", "1wk").
	GetSeries(ctx context.Context, symbol, rangeKey, interval string) ([]models.PricePoint, error)

	// Search returns up to count instruments matching query.
	Search(ctx context.Context, query string, count int) ([]models.SearchQuote, error)
}

// FundRegistry provides mutual-fund schemes and NAV history (mfapi.in).
type FundRegistry interface {
	ListSchemes(ctx context.Context) ([]models.Scheme, error)

	// GetNavHistory returns NAV rows as published, newest first.
	GetNavHistory(ctx context.Context, code string) ([]models.NavRow, error)
}

// LLMClient generates text from a system instruction and a conversation.
type LLMClient interface {
	Generate(ctx context.Context, system string, turns []models.ChatTurn) (string, error)
}
