// Package inpe downloads the daily fire focus CSV files published by INPE.
package inpe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/observability"
)

// DefaultBaseURL is the directory of the national daily files.
const DefaultBaseURL = "https://dataserver-coids.inpe.br/queimadas/queimadas/focos/csv/diario/Brasil/"

// Client fetches daily CSV files. Repeated transport failures open a circuit
// breaker that fails fast until the source recovers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an INPE client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		breaker:    newBreaker(metrics, logger),
		metrics:    metrics,
		logger:     logger,
	}
}

func newBreaker(metrics *observability.Metrics, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inpe",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing file is an answer, not a failure of the source.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// FileName is the name INPE gives the national file of a UTC day.
func FileName(day time.Time) string {
	return "focos_diario_br_" + day.UTC().Format("20060102") + ".csv"
}

// CSVURL builds the file URL for a UTC day.
func CSVURL(baseURL string, day time.Time) string {
	return strings.TrimRight(baseURL, "/") + "/" + FileName(day)
}

// FetchCSV downloads and decodes the file for the given day. A missing file
// returns domain.ErrNotFound; network failures and other statuses return
// domain.ErrTransport.
func (c *Client) FetchCSV(ctx context.Context, day time.Time) (string, error) {
	start := time.Now()
	defer func() { c.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	out, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, day)
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.metrics.SourceRequests.WithLabelValues("not_found").Inc()
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.metrics.SourceRequests.WithLabelValues("error").Inc()
			err = fmt.Errorf("inpe source unavailable: %w: %w", domain.ErrTransport, err)
		default:
			c.metrics.SourceRequests.WithLabelValues("error").Inc()
		}
		return "", err
	}
	c.metrics.SourceRequests.WithLabelValues("ok").Inc()
	return out.(string), nil
}

func (c *Client) fetch(ctx context.Context, day time.Time) (string, error) {
	u := CSVURL(c.baseURL, day)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w: %w", u, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("day %s: %w", domain.FormatDay(day), domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("inpe error: status %d: %s: %w", resp.StatusCode, body, domain.ErrTransport)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w: %w", domain.ErrTransport, err)
	}

	text, err := Decode(body)
	if err != nil {
		return "", err
	}
	c.logger.Debug("csv downloaded", "day", domain.FormatDay(day), "bytes", len(body))
	return text, nil
}

// Decode returns the body as UTF-8, converting from Latin-1 when the bytes
// are not valid UTF-8.
func Decode(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("latin-1 fallback: %w: %w", domain.ErrDecode, err)
	}
	return string(out), nil
}
