package evidence

import (
	"fmt"
	"strings"

	"github.com/dyike/cortexanalyst/internal/critique"
	"github.com/shopspring/decimal"
)

const na = "N/A"

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	trillion = decimal.NewFromInt(1_000_000_000_000)
)

// Render produces the canonical evidence document consumed by every
// downstream stage.
func (e *Evidence) Render() string {
	var b strings.Builder
	id := e.Identity
	title := id.Symbol
	if id.Name != "" {
		title = fmt.Sprintf("%s (%s)", id.Name, id.Symbol)
	}
	fmt.Fprintf(&b, "# MARKET DATA: %s\n\n", title)
	if !e.FetchedAt.IsZero() {
		fmt.Fprintf(&b, "Collected: %s\n\n", e.FetchedAt.Format("2006-01-02 15:04"))
	}

	b.WriteString(e.KeyFigures())
	b.WriteString("\n")

	b.WriteString("## 1. COMPANY\n")
	line(&b, "Name", orNA(id.Name))
	line(&b, "Sector", orNA(id.Sector))
	line(&b, "Industry", orNA(id.Industry))
	line(&b, "Country", orNA(id.Country))
	line(&b, "Exchange", orNA(id.Exchange))
	line(&b, "Currency", orNA(id.Currency))
	if id.Description != "" {
		b.WriteString("\n" + truncateRunes(id.Description, 800) + "\n")
	}

	b.WriteString("\n## 2. TRADING SESSION\n")
	line(&b, "Open", e.money(e.Quote.Open))
	line(&b, "High", e.money(e.Quote.High))
	line(&b, "Low", e.money(e.Quote.Low))
	line(&b, "Volume", compact(e.Quote.Volume))

	b.WriteString("\n## 3. VALUATION\n")
	line(&b, critique.LabelPE, ratio(e.Valuation.TrailingPE))
	line(&b, "P/E (forward)", ratio(e.Valuation.ForwardPE))
	line(&b, "PEG", ratio(e.Valuation.PEG))
	line(&b, "Price/Sales", ratio(e.Valuation.PS))
	line(&b, "Price/Book", ratio(e.Valuation.PB))

	b.WriteString("\n## 4. PROFITABILITY\n")
	line(&b, "Profit margin", percent(e.Profitability.ProfitMargin))
	line(&b, "Operating margin", percent(e.Profitability.OperatingMargin))
	line(&b, "Return on equity", percent(e.Profitability.ROE))

	b.WriteString("\n## 5. GROWTH\n")
	line(&b, "Revenue growth (yoy)", percent(e.Growth.Revenue))
	line(&b, "Earnings growth (yoy)", percent(e.Growth.Earnings))

	b.WriteString("\n## 6. BALANCE SHEET\n")
	line(&b, "Total cash", e.big(e.Balance.Cash))
	line(&b, "Total debt", e.big(e.Balance.Debt))
	line(&b, "Debt/Equity", ratio(e.Balance.DebtToEquity))

	b.WriteString("\n## 7. DIVIDEND\n")
	line(&b, "Annual rate", e.money(e.Dividend.Rate))
	line(&b, "Yield", percent(e.Dividend.Yield))
	line(&b, "Payout ratio", percent(e.Dividend.Payout))

	b.WriteString("\n## 8. ANALYST CONSENSUS\n")
	line(&b, "Recommendation", orNA(strings.ToUpper(e.Consensus.Recommendation)))
	line(&b, "Mean target", e.money(e.Consensus.TargetMean))
	analysts := na
	if e.Consensus.Analysts > 0 {
		analysts = fmt.Sprintf("%d", e.Consensus.Analysts)
	}
	line(&b, "Analysts", analysts)

	b.WriteString("\n## 9. MOMENTUM\n")
	line(&b, "50-day average", e.money(e.Momentum.FiftyDay))
	line(&b, "200-day average", e.money(e.Momentum.TwoHundredDay))
	e.renderHistory(&b)

	b.WriteString("\n## 10. QUARTERLY NET INCOME\n")
	if len(e.Quarters) == 0 {
		b.WriteString("No quarterly results available.\n")
	}
	for _, q := range e.Quarters {
		line(&b, q.Period, e.big(decimal.NullDecimal{Decimal: q.NetIncome, Valid: true}))
	}

	b.WriteString("\n## 11. RECENT NEWS\n")
	b.WriteString(e.NewsDigest())

	if len(e.Omitted) > 0 {
		b.WriteString("\n## OMITTED SOURCES\n")
		for _, o := range e.Omitted {
			fmt.Fprintf(&b, "- %s: %s\n", o.Source, o.Reason)
		}
	}
	return b.String()
}

// KeyFigures renders the block the figure-consistency check reads.
func (e *Evidence) KeyFigures() string {
	var b strings.Builder
	b.WriteString("## KEY FIGURES\n")
	line(&b, critique.LabelPrice, e.money(e.Quote.Price))
	line(&b, critique.LabelMarketCap, e.big(e.Quote.MarketCap))
	line(&b, critique.LabelPE, ratio(e.Valuation.TrailingPE))
	line(&b, "Mean analyst target", e.money(e.Consensus.TargetMean))
	line(&b, "Operating margin", percent(e.Profitability.OperatingMargin))
	line(&b, "Revenue growth", percent(e.Growth.Revenue))
	return b.String()
}

// NewsDigest lists the collected articles.
func (e *Evidence) NewsDigest() string {
	if len(e.News) == 0 {
		return "No recent news available.\n"
	}
	var b strings.Builder
	for i, a := range e.News {
		fmt.Fprintf(&b, "\n### %d. %s\n", i+1, a.Title)
		if !a.Published.IsZero() {
			fmt.Fprintf(&b, "*%s*", a.Published.Format("2006-01-02"))
			if a.Link != "" {
				b.WriteString(" | ")
			}
		}
		if a.Link != "" {
			b.WriteString(a.Link)
		}
		b.WriteString("\n")
		if a.Body != "" {
			b.WriteString(a.Body + "\n")
		}
	}
	return b.String()
}

func (e *Evidence) renderHistory(b *strings.Builder) {
	h := e.Momentum.History
	if len(h) < 2 {
		b.WriteString("No recent price history available.\n")
		return
	}
	first, last := h[0], h[len(h)-1]
	lo, hi := first.Close, first.Close
	for _, bar := range h[1:] {
		lo = decimal.Min(lo, bar.Close)
		hi = decimal.Max(hi, bar.Close)
	}
	change := na
	if !first.Close.IsZero() {
		change = last.Close.Sub(first.Close).Div(first.Close).Mul(hundred).StringFixed(2) + "%"
	}
	fmt.Fprintf(b, "- **Period:** %s to %s (%d sessions)\n",
		first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02"), len(h))
	line(b, "Change over period", change)
	line(b, "Period low", e.money(decimal.NullDecimal{Decimal: lo, Valid: true}))
	line(b, "Period high", e.money(decimal.NullDecimal{Decimal: hi, Valid: true}))
}

func line(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "- **%s:** %s\n", label, value)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return na
	}
	return s
}

func (e *Evidence) withCurrency(s string) string {
	if e.Identity.Currency == "" {
		return s
	}
	return s + " " + e.Identity.Currency
}

func (e *Evidence) money(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return e.withCurrency(d.Decimal.StringFixed(2))
}

func (e *Evidence) big(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return e.withCurrency(compact(d))
}

// compact abbreviates large magnitudes: 780520000000 -> 780.52B.
func compact(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	v := d.Decimal
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(trillion):
		return v.Div(trillion).StringFixed(2) + "T"
	case abs.GreaterThanOrEqual(billion):
		return v.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return v.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return v.Div(thousand).StringFixed(2) + "K"
	default:
		return v.StringFixed(0)
	}
}

func ratio(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return d.Decimal.StringFixed(2)
}

func percent(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return d.Decimal.Mul(hundred).StringFixed(2) + "%"
}
