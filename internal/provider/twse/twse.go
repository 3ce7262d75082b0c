// Package twse lists the scannable universe and classifies instruments
// from the TWSE and TPEX open-data endpoints. Both exchanges publish
// their company registries as JSON arrays of records keyed by Chinese
// field names; gjson keeps the extraction tolerant of the extra fields
// those feeds carry.
package twse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/tidwall/gjson"
)

const (
	defaultListedURL = "https://openapi.twse.com.tw/v1/opendata/t187ap03_L"
	defaultOTCURL    = "https://www.tpex.org.tw/openapi/v1/mopsfin_t187ap03_O"
)

// Client implements provider.UniverseLister and provider.Classifier
// against the exchange registries.
type Client struct {
	http      *http.Client
	listedURL string
	otcURL    string

	mu    sync.Mutex
	index map[string]core.Instrument // lazily built for Classify
}

// New creates a new registry client
func New() *Client {
	return &Client{
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		listedURL: defaultListedURL,
		otcURL:    defaultOTCURL,
	}
}

// NewWithURLs creates a client against non-default endpoints, used by
// tests.
func NewWithURLs(listedURL, otcURL string) *Client {
	c := New()
	c.listedURL = listedURL
	c.otcURL = otcURL
	return c
}

// ListUniverse fetches both registries and returns the 4-digit common
// equities. A failure on either exchange fails the whole listing: a
// half universe would silently skip an entire board.
func (c *Client) ListUniverse(ctx context.Context) ([]core.Instrument, error) {
	listed, err := c.fetchBoard(ctx, c.listedURL, core.VenueListed)
	if err != nil {
		return nil, core.WrapError(core.ErrUniverseUnavailable, err)
	}
	otc, err := c.fetchBoard(ctx, c.otcURL, core.VenueOTC)
	if err != nil {
		return nil, core.WrapError(core.ErrUniverseUnavailable, err)
	}

	universe := append(listed, otc...)

	c.mu.Lock()
	c.index = make(map[string]core.Instrument, len(universe))
	for _, ins := range universe {
		c.index[ins.ID] = ins
	}
	c.mu.Unlock()

	return universe, nil
}

// Classify resolves display name and industry label from the registry,
// listing the universe first if this run has not done so yet.
func (c *Client) Classify(ctx context.Context, id string) (core.Classification, error) {
	c.mu.Lock()
	idx := c.index
	c.mu.Unlock()

	if idx == nil {
		if _, err := c.ListUniverse(ctx); err != nil {
			return core.Classification{}, err
		}
		c.mu.Lock()
		idx = c.index
		c.mu.Unlock()
	}

	ins, ok := idx[id]
	if !ok {
		return core.Classification{}, core.WrapError(core.ErrNoData, fmt.Errorf("unknown instrument %s", id))
	}
	return core.Classification{Name: ins.Name, Sector: ins.Sector}, nil
}

func (c *Client) fetchBoard(ctx context.Context, url string, venue core.Venue) ([]core.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("unexpected registry shape")
	}

	suffix := ".TW"
	if venue == core.VenueOTC {
		suffix = ".TWO"
	}

	var out []core.Instrument
	parsed.ForEach(func(_, rec gjson.Result) bool {
		code := rec.Get("公司代號").String()
		// ETFs, warrants and preferred shares carry longer codes;
		// only 4-digit common equities are scanned.
		if len(code) != 4 {
			return true
		}
		name := rec.Get("公司簡稱").String()
		if name == "" {
			name = rec.Get("公司名稱").String()
		}
		out = append(out, core.Instrument{
			ID:     code,
			Symbol: code + suffix,
			Name:   name,
			Venue:  venue,
			Sector: rec.Get("產業別").String(),
		})
		return true
	})

	if len(out) == 0 {
		return nil, fmt.Errorf("registry returned no instruments")
	}
	return out, nil
}
