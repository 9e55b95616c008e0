package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultBaseURL = "https://datasets-server.huggingface.co"
	DefaultDataset = "marsyas/gtzan"
	DefaultConfig  = "all"
	DefaultSplit   = "train"
	// MaxPageSize is the largest page the rows endpoint serves.
	MaxPageSize = 100
)

// Client reads a hosted dataset through the datasets-server rows API.
type Client struct {
	baseURL string
	dataset string
	config  string
	split   string
	token   string
	client  *http.Client
}

// ClientOptions configures NewClient. Empty fields take the defaults.
type ClientOptions struct {
	BaseURL string
	Dataset string
	Config  string
	Split   string
	Token   string
	Timeout time.Duration
}

// RowsPage is one page of the rows endpoint.
type RowsPage struct {
	Features     []Feature `json:"features"`
	Rows         []Row     `json:"rows"`
	NumRowsTotal int       `json:"num_rows_total"`
	Partial      bool      `json:"partial"`
}

// Feature describes one dataset column.
type Feature struct {
	Index int         `json:"feature_idx"`
	Name  string      `json:"name"`
	Type  FeatureType `json:"type"`
}

// FeatureType carries the column type. Names is set for ClassLabel columns.
type FeatureType struct {
	Kind         string   `json:"_type"`
	Names        []string `json:"names,omitempty"`
	SamplingRate int      `json:"sampling_rate,omitempty"`
}

// Row is one sample; cell values stay raw until the importer interprets them.
type Row struct {
	Index  int                        `json:"row_idx"`
	Values map[string]json.RawMessage `json:"row"`
}

// AudioAsset points at a downloadable rendition of an audio cell.
type AudioAsset struct {
	Src  string `json:"src"`
	Type string `json:"type"`
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Dataset == "" {
		opts.Dataset = DefaultDataset
	}
	if opts.Config == "" {
		opts.Config = DefaultConfig
	}
	if opts.Split == "" {
		opts.Split = DefaultSplit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	return &Client{
		baseURL: opts.BaseURL,
		dataset: opts.Dataset,
		config:  opts.Config,
		split:   opts.Split,
		token:   opts.Token,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// Page fetches rows [offset, offset+length).
func (c *Client) Page(ctx context.Context, offset, length int) (*RowsPage, error) {
	if length <= 0 || length > MaxPageSize {
		length = MaxPageSize
	}

	query := url.Values{}
	query.Set("dataset", c.dataset)
	query.Set("config", c.config)
	query.Set("split", c.split)
	query.Set("offset", strconv.Itoa(offset))
	query.Set("length", strconv.Itoa(length))

	body, err := c.get(ctx, c.baseURL+"/rows?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("rows request failed (offset %d): %w", offset, err)
	}

	var page RowsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode rows response: %w", err)
	}
	return &page, nil
}

// Fetch downloads an asset referenced by a row.
func (c *Client) Fetch(ctx context.Context, assetURL string) ([]byte, error) {
	body, err := c.get(ctx, assetURL)
	if err != nil {
		return nil, fmt.Errorf("asset download failed: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("asset %s is empty", assetURL)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
