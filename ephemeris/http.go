package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPSource is the default source name of the HTTP provider.
const HTTPSource = "http"

// maxBody bounds the size of a decoded response.
const maxBody = 1 << 16

// moonPayload is the JSON document served by a remote Moon endpoint.
type moonPayload struct {
	Longitude    *float64 `json:"longitude"`
	Illumination *float64 `json:"illumination"`
	Distance     *float64 `json:"distance"`
	Source       string   `json:"source,omitempty"`
}

// HTTP fetches the Moon from a remote JSON endpoint. The requested time is sent as
// the RFC 3339 "time" query parameter.
type HTTP struct {
	URL    string
	Source string
	Client *retryablehttp.Client
}

// NewHTTP returns a provider retrying up to three times with a five second timeout
// per attempt.
func NewHTTP(endpoint string, logger log.Logger) *HTTP {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 5 * time.Second
	c.Logger = leveled{log.With(logger, "subsys", "ephem")}
	return &HTTP{URL: endpoint, Source: HTTPSource, Client: c}
}

// MoonOverride implements orrery.EphemerisProvider. Missing fields are an error.
func (h *HTTP) MoonOverride(ctx context.Context, t time.Time) (*orrery.MoonOverride, error) {
	u, err := url.Parse(h.URL)
	if err != nil {
		return nil, fmt.Errorf("moon endpoint: %w", err)
	}
	q := u.Query()
	q.Set("time", t.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moon endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("moon endpoint: unexpected status %s", resp.Status)
	}
	var p moonPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&p); err != nil {
		return nil, fmt.Errorf("moon endpoint: decoding: %w", err)
	}
	if p.Longitude == nil || p.Illumination == nil || p.Distance == nil {
		return nil, fmt.Errorf("moon endpoint: incomplete payload")
	}
	source := h.Source
	if p.Source != "" {
		source = p.Source
	}
	return &orrery.MoonOverride{
		Longitude:    *p.Longitude,
		Illumination: *p.Illumination,
		Distance:     *p.Distance,
		Source:       source,
		Fetched:      time.Now().UTC(),
	}, nil
}

// leveled adapts a go-kit logger to retryablehttp.LeveledLogger.
type leveled struct {
	logger log.Logger
}

func (l leveled) log(lvl func(log.Logger) log.Logger, msg string, kv []any) {
	lvl(l.logger).Log(append([]any{"msg", msg}, kv...)...)
}

func (l leveled) Error(msg string, kv ...any) { l.log(level.Error, msg, kv) }
func (l leveled) Info(msg string, kv ...any)  { l.log(level.Info, msg, kv) }
func (l leveled) Debug(msg string, kv ...any) { l.log(level.Debug, msg, kv) }
func (l leveled) Warn(msg string, kv ...any)  { l.log(level.Warn, msg, kv) }
