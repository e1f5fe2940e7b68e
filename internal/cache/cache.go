// Package cache keeps short-lived copies of catalog and search responses in
// Redis and reports what happened in a Cache-Status header (RFC 9211).
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dunglas/httpsfv"
	"github.com/redis/go-redis/v9"
)

// HeaderName is the response header describing cache handling.
const HeaderName = "Cache-Status"

// CacheName identifies this cache in Cache-Status entries.
const CacheName = "storefront"

const (
	keyPrefix  = "storefront:http:"
	DefaultTTL = 60 * time.Second
)

// cmdable is the subset of go-redis used here.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Options configures a Cache.
type Options struct {
	TTL    time.Duration
	Logger *slog.Logger
}

// Cache stores successful GET responses keyed by path and query.
type Cache struct {
	client cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// New returns a cache backed by client.
func New(client cmdable, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{client: client, ttl: opts.TTL, logger: opts.Logger}
}

type entry struct {
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Key returns the Redis key for r. Query parameters are sorted so that
// equivalent requests share an entry.
func Key(r *http.Request) string {
	return keyPrefix + r.URL.Path + "?" + r.URL.Query().Encode()
}

// Middleware serves GET requests from the cache and stores 200 responses.
// Redis failures are logged and the request is served uncached.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil || r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := Key(r)

		e, ttl, err := c.lookup(ctx, key)
		switch {
		case err == nil:
			w.Header().Set(HeaderName, Hit(ttl))
			w.Header().Set("Content-Type", e.ContentType)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(e.Body)
			return
		case errors.Is(err, redis.Nil):
		default:
			c.logger.WarnContext(ctx, "cache lookup failed", slog.String("key", key), slog.String("error", err.Error()))
			w.Header().Set(HeaderName, Forward("bypass", false))
			next.ServeHTTP(w, r)
			return
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status != http.StatusOK {
			return
		}
		if err := c.store(ctx, key, entry{ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()}); err != nil {
			c.logger.WarnContext(ctx, "cache store failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	})
}

func (c *Cache) lookup(ctx context.Context, key string) (entry, time.Duration, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return entry{}, 0, err
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return entry{}, 0, fmt.Errorf("decoding cache entry: %w", err)
	}
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return entry{}, 0, err
	}
	return e, ttl, nil
}

func (c *Cache) store(ctx context.Context, key string, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// recorder forwards the response and keeps a copy of the body.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
	r.Header().Set(HeaderName, Forward("miss", code == http.StatusOK))
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Hit formats a Cache-Status entry for a response served from the cache.
func Hit(ttl time.Duration) string {
	params := httpsfv.NewParams()
	params.Add("hit", true)
	if ttl > 0 {
		params.Add("ttl", int64(ttl/time.Second))
	}
	return marshal(params)
}

// Forward formats a Cache-Status entry for a response that went to the
// handler.
func Forward(reason string, stored bool) string {
	params := httpsfv.NewParams()
	params.Add("fwd", httpsfv.Token(reason))
	if stored {
		params.Add("stored", true)
	}
	return marshal(params)
}

func marshal(params *httpsfv.Params) string {
	item := httpsfv.NewItem(httpsfv.Token(CacheName))
	item.Params = params
	s, err := httpsfv.Marshal(httpsfv.List{item})
	if err != nil {
		return CacheName
	}
	return s
}

// Status is one parsed Cache-Status entry.
type Status struct {
	Cache  string
	Hit    bool
	Fwd    string
	Stored bool
	TTL    time.Duration
}

// ParseStatus returns the entry for this cache from a Cache-Status header.
func ParseStatus(header string) (Status, error) {
	list, err := httpsfv.UnmarshalList([]string{header})
	if err != nil {
		return Status{}, fmt.Errorf("invalid %s header: %w", HeaderName, err)
	}
	for _, member := range list {
		item, ok := member.(httpsfv.Item)
		if !ok {
			continue
		}
		name, ok := item.Value.(httpsfv.Token)
		if !ok || string(name) != CacheName {
			continue
		}
		st := Status{Cache: string(name)}
		if v, ok := item.Params.Get("hit"); ok {
			st.Hit, _ = v.(bool)
		}
		if v, ok := item.Params.Get("fwd"); ok {
			if tok, ok := v.(httpsfv.Token); ok {
				st.Fwd = string(tok)
			}
		}
		if v, ok := item.Params.Get("stored"); ok {
			st.Stored, _ = v.(bool)
		}
		if v, ok := item.Params.Get("ttl"); ok {
			if n, ok := v.(int64); ok {
				st.TTL = time.Duration(n) * time.Second
			}
		}
		return st, nil
	}
	return Status{}, fmt.Errorf("no %s entry in %s header", CacheName, HeaderName)
}
