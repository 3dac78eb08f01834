package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"momentum-lens/internal/errors"
	"momentum-lens/internal/models"
	"momentum-lens/pkg/utils"
)

// EastMoneyFetcher retrieves daily klines and IOPV quotes from the free
// EastMoney push2 endpoints.
type EastMoneyFetcher struct {
	baseURL string
	client  *http.Client
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewEastMoneyFetcher creates a fetcher against the given base URL.
func NewEastMoneyFetcher(baseURL string, timeout time.Duration, logger zerolog.Logger) *EastMoneyFetcher {
	return &EastMoneyFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		retry:   utils.DefaultRetryConfig(),
		logger:  logger,
	}
}

type klineResponse struct {
	Data struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

type quoteResponse struct {
	Data struct {
		Code string  `json:"f57"`
		Last float64 `json:"f43"`
		IOPV float64 `json:"f172"`
		Disc float64 `json:"f173"`
	} `json:"data"`
}

// FetchPrices returns daily candles per code. Codes whose fetch fails are
// absent from the result rather than failing the batch; the error is
// non-nil only when every code fails.
func (f *EastMoneyFetcher) FetchPrices(ctx context.Context, codes []string, start, end time.Time) (map[string][]models.Candle, error) {
	result := make(map[string][]models.Candle, len(codes))
	var lastErr error

	for _, code := range codes {
		candles, err := f.fetchKlines(ctx, code, start, end)
		if err != nil {
			lastErr = err
			f.logger.Warn().Str("code", code).Err(err).Msg("price fetch failed, code omitted")
			continue
		}
		result[code] = candles
	}

	if len(result) == 0 && lastErr != nil {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable, lastErr.Error())
	}
	return result, nil
}

func (f *EastMoneyFetcher) fetchKlines(ctx context.Context, code string, start, end time.Time) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("secid", secID(code))
	q.Set("klt", "101") // daily
	q.Set("fqt", "1")   // forward-adjusted
	q.Set("beg", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))
	q.Set("fields1", "f1,f2,f3")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56")

	endpoint := f.baseURL + "/api/qt/stock/kline/get?" + q.Encode()

	var payload klineResponse
	err := utils.Retry(ctx, f.retry, func() error {
		return f.getJSON(ctx, endpoint, &payload)
	})
	if err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(payload.Data.Klines))
	for _, line := range payload.Data.Klines {
		c, err := parseKline(line)
		if err != nil {
			return nil, errors.NewDataError("kline", code, "malformed kline row", err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseKline parses one "date,open,close,high,low,volume" row.
func parseKline(line string) (models.Candle, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return models.Candle{}, fmt.Errorf("expected 6 fields, got %d", len(parts))
	}

	ts, err := time.ParseInLocation("2006-01-02", parts[0], utils.ChinaLocation)
	if err != nil {
		return models.Candle{}, err
	}

	vals := make([]float64, 4)
	for i, idx := range []int{1, 2, 3, 4} {
		v, err := strconv.ParseFloat(parts[idx], 64)
		if err != nil {
			return models.Candle{}, err
		}
		vals[i] = v
	}

	volume, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return models.Candle{}, err
	}

	candle := models.Candle{
		Timestamp: ts,
		Open:      vals[0],
		Close:     vals[1],
		High:      vals[2],
		Low:       vals[3],
		Volume:    volume,
	}
	if !candle.Valid() {
		return models.Candle{}, errors.ErrMalformedSeries
	}
	return candle, nil
}

// IOPVQuotes returns live quotes per code, omitting codes whose quote is
// unavailable or invalid.
func (f *EastMoneyFetcher) IOPVQuotes(ctx context.Context, codes []string) (map[string]models.IOPVQuote, error) {
	result := make(map[string]models.IOPVQuote, len(codes))
	var lastErr error

	for _, code := range codes {
		quote, err := f.fetchQuote(ctx, code)
		if err != nil {
			lastErr = err
			f.logger.Warn().Str("code", code).Err(err).Msg("IOPV fetch failed, code omitted")
			continue
		}
		result[code] = quote
	}

	if len(result) == 0 && lastErr != nil {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable, lastErr.Error())
	}
	return result, nil
}

func (f *EastMoneyFetcher) fetchQuote(ctx context.Context, code string) (models.IOPVQuote, error) {
	q := url.Values{}
	q.Set("secid", secID(code))
	q.Set("fields", "f43,f57,f172,f173")

	endpoint := f.baseURL + "/api/qt/stock/get?" + q.Encode()

	var payload quoteResponse
	err := utils.Retry(ctx, f.retry, func() error {
		return f.getJSON(ctx, endpoint, &payload)
	})
	if err != nil {
		return models.IOPVQuote{}, err
	}

	// Prices arrive scaled by 1000 on the push2 quote endpoint.
	quote := models.IOPVQuote{
		Code:            code,
		IOPV:            payload.Data.IOPV / 1000,
		PremiumDiscount: payload.Data.Disc / 100,
		LastPrice:       payload.Data.Last / 1000,
		Timestamp:       time.Now().In(utils.ChinaLocation),
	}
	return quote, nil
}

func (f *EastMoneyFetcher) getJSON(ctx context.Context, endpoint string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, endpoint)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// secID maps an instrument code to EastMoney's market-prefixed id.
// Shanghai listings (5xxxxx, 6xxxxx, 000300 index) use prefix 1, Shenzhen
// listings prefix 0.
func secID(code string) string {
	if strings.HasPrefix(code, "5") || strings.HasPrefix(code, "6") || code == "000300" {
		return "1." + code
	}
	return "0." + code
}

var _ Fetcher = (*EastMoneyFetcher)(nil)
