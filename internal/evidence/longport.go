package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
)

var ErrNoCredentials = errors.New("longport API credentials not configured")

type staticInfoer interface {
	StaticInfo(ctx context.Context, symbols []string) ([]*quote.StaticInfo, error)
}

// LongportSource enriches identity data for Hong Kong, mainland China
// and US listings.
type LongportSource struct {
	quotes staticInfoer
}

func NewLongportSource(appKey, appSecret, accessToken string) (*LongportSource, error) {
	if appKey == "" || appSecret == "" || accessToken == "" {
		return nil, ErrNoCredentials
	}
	conf, err := lpconfig.New(lpconfig.WithConfigKey(appKey, appSecret, accessToken))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}
	qctx, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport quote context: %w", err)
	}
	return &LongportSource{quotes: qctx}, nil
}

func (s *LongportSource) Name() string { return "longport" }

// Fetch is a no-op for symbols on markets Longport does not cover.
func (s *LongportSource) Fetch(ctx context.Context, symbol string, part *Evidence) error {
	lp, ok := longportSymbol(symbol)
	if !ok {
		return nil
	}
	infos, err := s.quotes.StaticInfo(ctx, []string{lp})
	if err != nil {
		return fmt.Errorf("static info %s: %w", lp, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return fmt.Errorf("static info %s: not found", lp)
	}
	info := infos[0]
	part.Identity.Name = info.NameEn
	if part.Identity.Name == "" {
		part.Identity.Name = info.NameCn
	}
	part.Identity.Exchange = info.Exchange
	part.Identity.Currency = info.Currency
	return nil
}

// longportSymbol maps a Yahoo-style ticker to Longport notation:
// 0700.HK -> 700.HK, 600519.SS -> 600519.SH, AAPL -> AAPL.US.
func longportSymbol(symbol string) (string, bool) {
	symbol = strings.ToUpper(symbol)
	code, market, found := strings.Cut(symbol, ".")
	if !found {
		return symbol + ".US", true
	}
	switch market {
	case "HK":
		code = strings.TrimLeft(code, "0")
		if code == "" {
			return "", false
		}
		return code + ".HK", true
	case "SS", "SH":
		return code + ".SH", true
	case "SZ":
		return code + ".SZ", true
	default:
		return "", false
	}
}
