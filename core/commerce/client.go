// Package commerce talks to a WooCommerce store through the WordPress REST API.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/metrics"
)

const (
	apiPrefix       = "/wp-json/wc/v3"
	categoryPerPage = 100
	maxCategoryPage = 50
	maxErrorBody    = 4 << 10

	defaultTimeout   = 30 * time.Second
	defaultMediaPath = "/wp-json/wp/v2/media"

	opListCategories = "list_categories"
	opCreateCategory = "create_category"
	opUploadMedia    = "upload_media"
	opCreateProduct  = "create_product"
)

// Options configure a Client.
type Options struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	// QueryStringAuth passes the consumer key/secret as query parameters.
	QueryStringAuth bool

	MediaPath     string
	MediaRef      MediaRefMode
	MediaUser     string
	MediaPassword string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a WooCommerce REST client covering categories, media and products.
type Client struct {
	opts    Options
	base    *url.URL
	httpCli *http.Client
}

// New validates options and builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("commerce: invalid base url %q", opts.BaseURL)
	}
	if opts.ConsumerKey == "" || opts.ConsumerSecret == "" {
		return nil, errors.New("commerce: consumer key and secret are required")
	}
	if opts.MediaPath == "" {
		opts.MediaPath = defaultMediaPath
	}
	switch opts.MediaRef {
	case "":
		opts.MediaRef = MediaRefID
	case MediaRefID, MediaRefSrc:
	default:
		return nil, fmt.Errorf("commerce: unknown media ref mode %q", opts.MediaRef)
	}
	if opts.MediaUser == "" {
		opts.MediaUser, opts.MediaPassword = opts.ConsumerKey, opts.ConsumerSecret
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	httpCli := opts.HTTPClient
	if httpCli == nil {
		httpCli = buildHTTPClient(opts.Timeout)
	}
	return &Client{opts: opts, base: base, httpCli: httpCli}, nil
}

// buildHTTPClient mirrors the Telegram client tuning but without retries:
// backend writes are not idempotent.
func buildHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// MediaRefMode reports how product payloads reference images.
func (c *Client) MediaRefMode() MediaRefMode { return c.opts.MediaRef }

// ListCategories fetches the whole category collection, page by page.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	start := time.Now()
	var (
		all   []Category
		pages int
	)
	for page := 1; page <= maxCategoryPage; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(categoryPerPage))
		q.Set("page", strconv.Itoa(page))

		var batch []categoryResponse
		status, hdr, err := c.doJSON(ctx, opListCategories, http.MethodGet, "/products/categories", q, nil, &batch)
		if err != nil {
			c.observe(ctx, opListCategories, start, err)
			return nil, err
		}
		pages++
		for _, raw := range batch {
			cat, err := raw.validate(opListCategories, status)
			if err != nil {
				c.observe(ctx, opListCategories, start, err)
				return nil, err
			}
			all = append(all, cat)
		}
		if total, err := strconv.Atoi(hdr.Get("X-WP-TotalPages")); err == nil {
			if page >= total {
				break
			}
		} else if len(batch) < categoryPerPage {
			break
		}
	}
	c.observe(ctx, opListCategories, start, nil,
		slog.Int("count", len(all)),
		slog.Int("pages", pages),
	)
	return all, nil
}

// FindCategoryByExactName scans the category collection for a case-sensitive name match.
func (c *Client) FindCategoryByExactName(ctx context.Context, name string) (Category, bool, error) {
	cats, err := c.ListCategories(ctx)
	if err != nil {
		return Category{}, false, err
	}
	for _, cat := range cats {
		if cat.Name == name {
			return cat, true, nil
		}
	}
	return Category{}, false, nil
}

// CreateCategory creates a category. When the store reports the name as taken
// and points at the existing term, that term is returned instead.
func (c *Client) CreateCategory(ctx context.Context, name string) (Category, error) {
	start := time.Now()
	var out categoryResponse
	status, _, err := c.doJSON(ctx, opCreateCategory, http.MethodPost, "/products/categories", nil, categoryRequest{Name: name}, &out)
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) && be.Code == "term_exists" && be.ResourceID > 0 {
			cat := Category{ID: be.ResourceID, Name: name}
			c.observe(ctx, opCreateCategory, start, nil,
				slog.Int64("category_id", cat.ID),
				slog.String("cause", "term_exists"),
			)
			return cat, nil
		}
		c.observe(ctx, opCreateCategory, start, err)
		return Category{}, err
	}
	cat, err := out.validate(opCreateCategory, status)
	c.observe(ctx, opCreateCategory, start, err, slog.Int64("category_id", cat.ID))
	return cat, err
}

// UploadMedia posts the raw image to the WordPress media library.
func (c *Client) UploadMedia(ctx context.Context, m Media) (MediaRef, error) {
	start := time.Now()
	ref, err := c.uploadMedia(ctx, m)
	if err != nil {
		err = &MediaUploadError{Err: err}
	}
	c.observe(ctx, opUploadMedia, start, err,
		slog.Int64("media_id", ref.ID),
		slog.Int("bytes", len(m.Data)),
	)
	return ref, err
}

func (c *Client) uploadMedia(ctx context.Context, m Media) (MediaRef, error) {
	if len(m.Data) == 0 {
		return MediaRef{}, &BackendError{Op: opUploadMedia, Code: "empty_body", Message: "no image data"}
	}
	contentType := m.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(m.Data)
	}
	filename := m.Filename
	if filename == "" {
		filename = "product-" + uuid.NewString() + extensionFor(contentType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.opts.MediaPath, nil), bytes.NewReader(m.Data))
	if err != nil {
		return MediaRef{}, fmt.Errorf("commerce: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.opts.MediaUser, c.opts.MediaPassword)

	var out mediaResponse
	status, _, err := c.send(req, opUploadMedia, &out)
	if err != nil {
		return MediaRef{}, err
	}
	return out.validate(opUploadMedia, status, c.opts.MediaRef)
}

// CreateProduct creates a simple product referencing the category and image.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	start := time.Now()
	body := productRequest{
		Name:             in.Name,
		Type:             "simple",
		RegularPrice:     in.RegularPrice,
		ShortDescription: in.ShortDescription,
		Categories:       []refID{{ID: in.CategoryID}},
	}
	if c.opts.MediaRef == MediaRefSrc {
		body.Images = []any{refSrc{Src: in.Image.SourceURL}}
	} else {
		body.Images = []any{refID{ID: in.Image.ID}}
	}

	var out productResponse
	status, _, err := c.doJSON(ctx, opCreateProduct, http.MethodPost, "/products", nil, body, &out)
	var p Product
	if err == nil {
		p, err = out.validate(opCreateProduct, status)
	}
	c.observe(ctx, opCreateProduct, start, err,
		slog.Int64("product_id", p.ID),
		slog.Int64("category_id", in.CategoryID),
	)
	return p, err
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, q url.Values, in, out any) (int, http.Header, error) {
	if q == nil {
		q = url.Values{}
	}
	if c.opts.QueryStringAuth {
		q.Set("consumer_key", c.opts.ConsumerKey)
		q.Set("consumer_secret", c.opts.ConsumerSecret)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("commerce: encode %s: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(apiPrefix+path, q), body)
	if err != nil {
		return 0, nil, fmt.Errorf("commerce: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if !c.opts.QueryStringAuth {
		req.SetBasicAuth(c.opts.ConsumerKey, c.opts.ConsumerSecret)
	}
	return c.send(req, op, out)
}

// send executes req and decodes a 2xx JSON body into out; other statuses become *BackendError.
func (c *Client) send(req *http.Request, op string, out any) (int, http.Header, error) {
	resp, err := c.httpCli.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redactURL(uerr.URL)
		}
		return 0, nil, fmt.Errorf("commerce: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		be := &BackendError{Op: op, Status: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != "" {
			be.Code = apiErr.Code
			be.Message = apiErr.Message
			be.ResourceID = apiErr.Data.ResourceID
		} else {
			be.Message = logger.SanitizeLimit(strings.TrimSpace(string(raw)), 200)
		}
		return resp.StatusCode, resp.Header, be
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, resp.Header, &BackendError{
			Op:      op,
			Status:  resp.StatusCode,
			Code:    "invalid_json",
			Message: err.Error(),
		}
	}
	return resp.StatusCode, resp.Header, nil
}

func (c *Client) observe(ctx context.Context, op string, start time.Time, err error, extra ...slog.Attr) {
	took := time.Since(start)
	status := "ok"
	level := slog.LevelDebug
	attrs := []slog.Attr{slog.String("op", op)}
	if err != nil {
		status = "fail"
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", err.Error()))
		var be *BackendError
		if errors.As(err, &be) {
			attrs = append(attrs, slog.String("err_code", be.ErrCode()))
			if be.Status != 0 {
				attrs = append(attrs, slog.Int("http_code", be.Status))
			}
		}
	} else {
		for _, a := range extra {
			if a.Value.Kind() == slog.KindInt64 && a.Value.Int64() == 0 {
				continue
			}
			attrs = append(attrs, a)
		}
	}
	attrs = append(attrs, slog.String("status", status), slog.Duration("duration", took))
	metrics.ObserveCommerceRequest(op, status, took)
	logger.LogEvent(ctx, logger.Commerce, level, "commerce.request", attrs...)
}

func extensionFor(contentType string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// redactURL drops the query string, which may carry consumer credentials.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
