package evidence

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/shopspring/decimal"
)

// YahooSource is the primary identity/quote source, backed by finance-go.
type YahooSource struct {
	cache *Cache
	retry Retry
	days  int
	now   func() time.Time

	lookup  func(symbol string) (*finance.Equity, error)
	history func(symbol string, start, end time.Time) ([]Bar, error)
}

// NewYahooSource returns the quote source. cache may be nil.
func NewYahooSource(cache *Cache, historyDays int) *YahooSource {
	if historyDays <= 0 {
		historyDays = 30
	}
	return &YahooSource{
		cache:   cache,
		retry:   DefaultRetry(),
		days:    historyDays,
		now:     time.Now,
		lookup:  equity.Get,
		history: chartHistory,
	}
}

func (s *YahooSource) Name() string { return "yahoo" }

func (s *YahooSource) Fetch(ctx context.Context, symbol string, part *Evidence) error {
	if s.cache.Load(s.Name(), symbol, part) {
		return nil
	}

	var eq *finance.Equity
	err := s.retry.Do(ctx, func() error {
		var err error
		eq, err = s.lookup(symbol)
		if err != nil {
			return err
		}
		if eq == nil {
			return fmt.Errorf("no quote for %s", symbol)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("quote %s: %w", symbol, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	fillFromEquity(part, symbol, eq)

	end := s.now()
	start := end.AddDate(0, 0, -s.days)
	// History is best effort; the quote alone is enough.
	if bars, err := s.history(symbol, start, end); err == nil {
		part.Momentum.History = bars
	}

	_ = s.cache.Store(s.Name(), symbol, part)
	return nil
}

func fillFromEquity(part *Evidence, symbol string, eq *finance.Equity) {
	name := eq.LongName
	if name == "" {
		name = eq.ShortName
	}
	part.Identity = Identity{
		Symbol:   symbol,
		Name:     name,
		Currency: eq.CurrencyID,
		Exchange: eq.FullExchangeName,
	}
	part.Quote = Quote{
		Price:     nonZero(eq.RegularMarketPrice),
		MarketCap: nonZero(float64(eq.MarketCap)),
		Open:      nonZero(eq.RegularMarketOpen),
		High:      nonZero(eq.RegularMarketDayHigh),
		Low:       nonZero(eq.RegularMarketDayLow),
		Volume:    nonZero(float64(eq.RegularMarketVolume)),
	}
	part.Valuation = Valuation{
		TrailingPE: nonZero(eq.TrailingPE),
		ForwardPE:  nonZero(eq.ForwardPE),
		PB:         nonZero(eq.PriceToBook),
	}
	part.Dividend = Dividend{
		Rate:  nonZero(eq.TrailingAnnualDividendRate),
		Yield: nonZero(eq.TrailingAnnualDividendYield),
	}
	part.Momentum.FiftyDay = nonZero(eq.FiftyDayAverage)
	part.Momentum.TwoHundredDay = nonZero(eq.TwoHundredDayAverage)
}

func chartHistory(symbol string, start, end time.Time) ([]Bar, error) {
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})
	var bars []Bar
	for iter.Next() {
		bar := iter.Bar()
		if bar.Close.Equal(decimal.Zero) {
			continue
		}
		bars = append(bars, Bar{
			Date:  time.Unix(int64(bar.Timestamp), 0).UTC(),
			Close: bar.Close,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	return bars, nil
}
