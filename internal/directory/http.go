package directory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 5 * time.Minute
)

// HTTPDirectory looks accounts up against a REST directory endpoint:
// GET {baseURL}/accounts/{name} returning 200 when the account exists and
// 404 when it does not. Positive and negative answers are cached in an LRU
// with a TTL so enforcement checks do not hammer the directory.
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	cache      *lru.Cache[string, cachedAnswer]
	ttl        time.Duration
}

type cachedAnswer struct {
	exists  bool
	expires time.Time
}

// NewHTTPDirectory creates a directory client for baseURL. A nil httpClient
// gets a 10s-timeout default; a nil logger falls back to slog.Default().
func NewHTTPDirectory(baseURL string, httpClient *http.Client, logger *slog.Logger) (*HTTPDirectory, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("directory base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[string, cachedAnswer](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create directory cache: %w", err)
	}

	return &HTTPDirectory{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "directory_client"),
		cache:      cache,
		ttl:        defaultCacheTTL,
	}, nil
}

// Exists implements Lookup. Lookup failures are returned to the caller and
// never cached; only definitive yes/no answers enter the cache.
func (d *HTTPDirectory) Exists(ctx context.Context, accountName string) (bool, error) {
	key := foldName(accountName)
	if key == "" {
		return false, nil
	}

	if answer, ok := d.cache.Get(key); ok && time.Now().Before(answer.expires) {
		return answer.exists, nil
	}

	endpoint := fmt.Sprintf("%s/accounts/%s", d.baseURL, url.PathEscape(accountName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("directory lookup for %q: %w", accountName, err)
	}
	defer resp.Body.Close()

	var exists bool
	switch resp.StatusCode {
	case http.StatusOK:
		exists = true
	case http.StatusNotFound:
		exists = false
	default:
		d.logger.Warn("unexpected directory response",
			"account", accountName,
			"status", resp.StatusCode)
		return false, fmt.Errorf("directory lookup for %q: unexpected status %d", accountName, resp.StatusCode)
	}

	d.cache.Add(key, cachedAnswer{exists: exists, expires: time.Now().Add(d.ttl)})
	return exists, nil
}

// foldName normalizes an account name for cache and set keys.
func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
