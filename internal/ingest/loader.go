// Package ingest fetches initial table snapshots from the upstream
// ingestion service. A table that has never been touched in a session
// is loaded from here on first initialize.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/infra/tlsroots"
)

// Loader produces the initial snapshot for a session's table.
type Loader interface {
	Load(ctx context.Context, sessionID, tableName string) (*domain.Snapshot, error)
}

// maxBodyBytes caps the ingestion response size. Oversized uploads
// are rejected before decoding.
const maxBodyBytes = 512 << 20

// HTTPLoader fetches snapshots from the ingestion API over HTTP.
type HTTPLoader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLoader builds a loader for the given base URL. timeout
// bounds each request end to end.
func NewHTTPLoader(baseURL string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPLoader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewHTTPLoaderTLS builds a loader that trusts the given CA file in
// addition to the system roots. Used when the ingestion service
// serves a private CA certificate.
func NewHTTPLoaderTLS(baseURL string, timeout time.Duration, caFile string) (*HTTPLoader, error) {
	pool, err := tlsroots.NewPool()
	if err != nil {
		return nil, fmt.Errorf("load system roots: %w", err)
	}
	if err := pool.AddCertFile(caFile); err != nil {
		return nil, err
	}

	l := NewHTTPLoader(baseURL, timeout)
	l.client.Transport = &http.Transport{
		TLSClientConfig: pool.TLSConfig(),
	}
	return l, nil
}

// Load GETs {base}/sessions/{id}/tables/{name} and decodes the
// snapshot wire form. Every failure mode wraps ErrLoadFailed.
func (l *HTTPLoader) Load(ctx context.Context, sessionID, tableName string) (*domain.Snapshot, error) {
	u := fmt.Sprintf("%s/sessions/%s/tables/%s",
		l.baseURL, url.PathEscape(sessionID), url.PathEscape(tableName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.ErrLoadFailed.WithCause(err)
	}
	req.Header.Set("Accept", "application/json, text/csv")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, domain.ErrLoadFailed.WithDetails("ingestion request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrLoadFailed.WithDetails(
			fmt.Sprintf("ingestion returned %d for %s/%s", resp.StatusCode, sessionID, tableName))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.ErrLoadFailed.WithDetails("reading ingestion response").WithCause(err)
	}

	// Datasets arrive either as the JSON wire form or as raw CSV
	// with inferred column types.
	var snap *domain.Snapshot
	if strings.Contains(resp.Header.Get("Content-Type"), "csv") {
		snap, err = DecodeCSV(body)
	} else {
		snap, err = domain.UnmarshalSnapshot(body)
	}
	if err != nil {
		return nil, domain.ErrLoadFailed.WithDetails("decoding ingestion response").WithCause(err)
	}
	return snap, nil
}
