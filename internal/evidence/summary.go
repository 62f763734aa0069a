package evidence

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	DefaultSummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/"
	summaryModules    = "assetProfile,financialData,defaultKeyStatistics,summaryDetail,earnings"
	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// SummarySource fetches fundamentals, consensus and quarterly results
// from the quoteSummary endpoint.
type SummarySource struct {
	client  *resty.Client
	baseURL string
	cache   *Cache
	retry   Retry
}

// NewSummarySource targets baseURL, or the public endpoint when empty.
func NewSummarySource(baseURL string, cache *Cache) *SummarySource {
	if baseURL == "" {
		baseURL = DefaultSummaryURL
	}
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &SummarySource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		cache:   cache,
		retry:   DefaultRetry(),
	}
}

func (s *SummarySource) Name() string { return "fundamentals" }

type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v rawValue) null() decimal.NullDecimal {
	if v.Raw == nil {
		return decimal.NullDecimal{}
	}
	return dec(*v.Raw)
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []summaryResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type summaryResult struct {
	AssetProfile *struct {
		Sector      string `json:"sector"`
		Industry    string `json:"industry"`
		Country     string `json:"country"`
		Description string `json:"longBusinessSummary"`
	} `json:"assetProfile"`
	FinancialData *struct {
		TargetMean       rawValue `json:"targetMeanPrice"`
		Recommendation   string   `json:"recommendationKey"`
		Analysts         rawValue `json:"numberOfAnalystOpinions"`
		TotalCash        rawValue `json:"totalCash"`
		TotalDebt        rawValue `json:"totalDebt"`
		DebtToEquity     rawValue `json:"debtToEquity"`
		ReturnOnEquity   rawValue `json:"returnOnEquity"`
		ProfitMargins    rawValue `json:"profitMargins"`
		OperatingMargins rawValue `json:"operatingMargins"`
		RevenueGrowth    rawValue `json:"revenueGrowth"`
		EarningsGrowth   rawValue `json:"earningsGrowth"`
	} `json:"financialData"`
	KeyStatistics *struct {
		PEG       rawValue `json:"pegRatio"`
		ForwardPE rawValue `json:"forwardPE"`
		PB        rawValue `json:"priceToBook"`
	} `json:"defaultKeyStatistics"`
	SummaryDetail *struct {
		TrailingPE    rawValue `json:"trailingPE"`
		PS            rawValue `json:"priceToSalesTrailing12Months"`
		DividendRate  rawValue `json:"dividendRate"`
		DividendYield rawValue `json:"dividendYield"`
		PayoutRatio   rawValue `json:"payoutRatio"`
		MarketCap     rawValue `json:"marketCap"`
	} `json:"summaryDetail"`
	Earnings *struct {
		FinancialsChart struct {
			Quarterly []struct {
				Date     string   `json:"date"`
				Earnings rawValue `json:"earnings"`
			} `json:"quarterly"`
		} `json:"financialsChart"`
	} `json:"earnings"`
}

func (s *SummarySource) Fetch(ctx context.Context, symbol string, part *Evidence) error {
	if s.cache.Load(s.Name(), symbol, part) {
		return nil
	}

	var out summaryResponse
	err := s.retry.Do(ctx, func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("modules", summaryModules).
			SetResult(&out).
			Get(s.baseURL + url.PathEscape(symbol))
		if err != nil {
			return err
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("fundamentals %s: %w", symbol, err)
	}
	if e := out.QuoteSummary.Error; e != nil {
		return fmt.Errorf("fundamentals %s: %s", symbol, e.Description)
	}
	if len(out.QuoteSummary.Result) == 0 {
		return fmt.Errorf("fundamentals %s: empty result", symbol)
	}

	fillFromSummary(part, out.QuoteSummary.Result[0])
	_ = s.cache.Store(s.Name(), symbol, part)
	return nil
}

func fillFromSummary(part *Evidence, r summaryResult) {
	if ap := r.AssetProfile; ap != nil {
		part.Identity.Sector = ap.Sector
		part.Identity.Industry = ap.Industry
		part.Identity.Country = ap.Country
		part.Identity.Description = ap.Description
	}
	if fd := r.FinancialData; fd != nil {
		part.Consensus.Recommendation = fd.Recommendation
		part.Consensus.TargetMean = fd.TargetMean.null()
		if fd.Analysts.Raw != nil {
			part.Consensus.Analysts = int(*fd.Analysts.Raw)
		}
		part.Balance = Balance{
			Cash: fd.TotalCash.null(),
			Debt: fd.TotalDebt.null(),
			// reported as a percentage
			DebtToEquity: fd.DebtToEquity.null(),
		}
		part.Profitability = Profitability{
			ProfitMargin:    fd.ProfitMargins.null(),
			OperatingMargin: fd.OperatingMargins.null(),
			ROE:             fd.ReturnOnEquity.null(),
		}
		part.Growth = Growth{
			Revenue:  fd.RevenueGrowth.null(),
			Earnings: fd.EarningsGrowth.null(),
		}
	}
	if ks := r.KeyStatistics; ks != nil {
		part.Valuation.PEG = ks.PEG.null()
		part.Valuation.ForwardPE = ks.ForwardPE.null()
		part.Valuation.PB = ks.PB.null()
	}
	if sd := r.SummaryDetail; sd != nil {
		part.Valuation.TrailingPE = sd.TrailingPE.null()
		part.Valuation.PS = sd.PS.null()
		part.Quote.MarketCap = sd.MarketCap.null()
		part.Dividend = Dividend{
			Rate:   sd.DividendRate.null(),
			Yield:  sd.DividendYield.null(),
			Payout: sd.PayoutRatio.null(),
		}
	}
	if e := r.Earnings; e != nil {
		for _, q := range e.FinancialsChart.Quarterly {
			if q.Earnings.Raw == nil {
				continue
			}
			part.Quarters = append(part.Quarters, Quarter{
				Period:    q.Date,
				NetIncome: decimal.NewFromFloat(*q.Earnings.Raw),
			})
		}
	}
}
