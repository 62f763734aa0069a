// Package evidence gathers the market data an analysis is grounded on and
// renders it as one canonical markdown document.
package evidence

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoData marks a failed primary identity/quote fetch. No analysis may
// run on top of it.
var ErrNoData = errors.New("no market data")

type Identity struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Sector      string `json:"sector,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Country     string `json:"country,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
	Description string `json:"description,omitempty"`
}

type Quote struct {
	Price     decimal.NullDecimal `json:"price"`
	MarketCap decimal.NullDecimal `json:"market_cap"`
	Open      decimal.NullDecimal `json:"open"`
	High      decimal.NullDecimal `json:"high"`
	Low       decimal.NullDecimal `json:"low"`
	Volume    decimal.NullDecimal `json:"volume"`
}

type Valuation struct {
	TrailingPE decimal.NullDecimal `json:"trailing_pe"`
	ForwardPE  decimal.NullDecimal `json:"forward_pe"`
	PEG        decimal.NullDecimal `json:"peg"`
	PS         decimal.NullDecimal `json:"ps"`
	PB         decimal.NullDecimal `json:"pb"`
}

// Ratios below are stored as fractions (0.25 is 25%).
type Profitability struct {
	ProfitMargin    decimal.NullDecimal `json:"profit_margin"`
	OperatingMargin decimal.NullDecimal `json:"operating_margin"`
	ROE             decimal.NullDecimal `json:"roe"`
}

type Growth struct {
	Revenue  decimal.NullDecimal `json:"revenue"`
	Earnings decimal.NullDecimal `json:"earnings"`
}

type Balance struct {
	Cash         decimal.NullDecimal `json:"cash"`
	Debt         decimal.NullDecimal `json:"debt"`
	DebtToEquity decimal.NullDecimal `json:"debt_to_equity"`
}

type Dividend struct {
	Rate   decimal.NullDecimal `json:"rate"`
	Yield  decimal.NullDecimal `json:"yield"`
	Payout decimal.NullDecimal `json:"payout"`
}

type Consensus struct {
	Recommendation string              `json:"recommendation,omitempty"`
	TargetMean     decimal.NullDecimal `json:"target_mean"`
	Analysts       int                 `json:"analysts,omitempty"`
}

type Bar struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

type Momentum struct {
	FiftyDay      decimal.NullDecimal `json:"fifty_day"`
	TwoHundredDay decimal.NullDecimal `json:"two_hundred_day"`
	History       []Bar               `json:"history,omitempty"`
}

type Quarter struct {
	Period    string          `json:"period"`
	NetIncome decimal.Decimal `json:"net_income"`
}

type Article struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Body      string    `json:"body"`
	Published time.Time `json:"published"`
}

// Omission records a source left out of the document.
type Omission struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

type Evidence struct {
	Identity      Identity      `json:"identity"`
	Quote         Quote         `json:"quote"`
	Valuation     Valuation     `json:"valuation"`
	Profitability Profitability `json:"profitability"`
	Growth        Growth        `json:"growth"`
	Balance       Balance       `json:"balance"`
	Dividend      Dividend      `json:"dividend"`
	Consensus     Consensus     `json:"consensus"`
	Momentum      Momentum      `json:"momentum"`
	Quarters      []Quarter     `json:"quarters,omitempty"`
	News          []Article     `json:"news,omitempty"`
	Omitted       []Omission    `json:"omitted,omitempty"`
	FetchedAt     time.Time     `json:"fetched_at"`
}

// HasQuote reports whether a usable price was fetched.
func (e *Evidence) HasQuote() bool {
	return e != nil && e.Quote.Price.Valid
}

// merge fills every empty field of e from src. Fields already set win, so
// sources merged first take precedence.
func (e *Evidence) merge(src *Evidence) {
	fillStr(&e.Identity.Symbol, src.Identity.Symbol)
	fillStr(&e.Identity.Name, src.Identity.Name)
	fillStr(&e.Identity.Sector, src.Identity.Sector)
	fillStr(&e.Identity.Industry, src.Identity.Industry)
	fillStr(&e.Identity.Country, src.Identity.Country)
	fillStr(&e.Identity.Currency, src.Identity.Currency)
	fillStr(&e.Identity.Exchange, src.Identity.Exchange)
	fillStr(&e.Identity.Description, src.Identity.Description)

	fillDec(&e.Quote.Price, src.Quote.Price)
	fillDec(&e.Quote.MarketCap, src.Quote.MarketCap)
	fillDec(&e.Quote.Open, src.Quote.Open)
	fillDec(&e.Quote.High, src.Quote.High)
	fillDec(&e.Quote.Low, src.Quote.Low)
	fillDec(&e.Quote.Volume, src.Quote.Volume)

	fillDec(&e.Valuation.TrailingPE, src.Valuation.TrailingPE)
	fillDec(&e.Valuation.ForwardPE, src.Valuation.ForwardPE)
	fillDec(&e.Valuation.PEG, src.Valuation.PEG)
	fillDec(&e.Valuation.PS, src.Valuation.PS)
	fillDec(&e.Valuation.PB, src.Valuation.PB)

	fillDec(&e.Profitability.ProfitMargin, src.Profitability.ProfitMargin)
	fillDec(&e.Profitability.OperatingMargin, src.Profitability.OperatingMargin)
	fillDec(&e.Profitability.ROE, src.Profitability.ROE)

	fillDec(&e.Growth.Revenue, src.Growth.Revenue)
	fillDec(&e.Growth.Earnings, src.Growth.Earnings)

	fillDec(&e.Balance.Cash, src.Balance.Cash)
	fillDec(&e.Balance.Debt, src.Balance.Debt)
	fillDec(&e.Balance.DebtToEquity, src.Balance.DebtToEquity)

	fillDec(&e.Dividend.Rate, src.Dividend.Rate)
	fillDec(&e.Dividend.Yield, src.Dividend.Yield)
	fillDec(&e.Dividend.Payout, src.Dividend.Payout)

	fillStr(&e.Consensus.Recommendation, src.Consensus.Recommendation)
	fillDec(&e.Consensus.TargetMean, src.Consensus.TargetMean)
	if e.Consensus.Analysts == 0 {
		e.Consensus.Analysts = src.Consensus.Analysts
	}

	fillDec(&e.Momentum.FiftyDay, src.Momentum.FiftyDay)
	fillDec(&e.Momentum.TwoHundredDay, src.Momentum.TwoHundredDay)
	if len(e.Momentum.History) == 0 {
		e.Momentum.History = src.Momentum.History
	}
	if len(e.Quarters) == 0 {
		e.Quarters = src.Quarters
	}
	e.News = append(e.News, src.News...)
}

func fillStr(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func fillDec(dst *decimal.NullDecimal, src decimal.NullDecimal) {
	if !dst.Valid && src.Valid {
		*dst = src
	}
}

func dec(f float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

// nonZero treats zero as missing, which is how the upstream APIs report it.
func nonZero(f float64) decimal.NullDecimal {
	if f == 0 {
		return decimal.NullDecimal{}
	}
	return dec(f)
}
