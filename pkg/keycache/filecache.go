package keycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const maxDocumentBytes = 1 << 20

// FileCache is the file-backed Resolver. One file per URL, named by the
// SHA-256 of the URL; the file's mtime is its fetch timestamp.
type FileCache struct {
	dir     string
	ttl     time.Duration
	timeout time.Duration

	client HTTPDoer
	log    *zap.Logger
	rec    Recorder
	now    func() time.Time

	group singleflight.Group
}

type Option func(*FileCache)

func WithHTTPClient(c HTTPDoer) Option      { return func(f *FileCache) { f.client = c } }
func WithLogger(l *zap.Logger) Option       { return func(f *FileCache) { f.log = l } }
func WithRecorder(r Recorder) Option        { return func(f *FileCache) { f.rec = r } }
func WithClock(now func() time.Time) Option { return func(f *FileCache) { f.now = now } }

// NewFileCache creates dir if needed. ttl bounds freshness; timeout bounds
// every network fetch.
func NewFileCache(dir string, ttl, timeout time.Duration, opts ...Option) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("keycache: dir is required")
	}
	if ttl <= 0 || timeout <= 0 {
		return nil, errors.New("keycache: ttl and timeout must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("keycache: create dir: %w", err)
	}
	f := &FileCache{
		dir:     dir,
		ttl:     ttl,
		timeout: timeout,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = defaultClient(timeout)
	}
	return f, nil
}

func defaultClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    30 * time.Second,
			DisableCompression: false,
		},
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return CheckURL(req.URL.String())
		},
	}
}

// Resolve serves a fresh cache entry, otherwise fetches. A failed fetch falls
// back to the cached entry however old it is.
func (f *FileCache) Resolve(ctx context.Context, url string) (*KeySet, error) {
	if err := CheckURL(url); err != nil {
		f.record(SourceError)
		return nil, err
	}
	path := f.pathFor(url)

	cached, fetchedAt, err := f.readCached(path)
	if err == nil && f.now().Sub(fetchedAt) < f.ttl {
		f.record(SourceFresh)
		return cached, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		f.log.Warn("jwks cache entry unreadable", zap.String("url", url), zap.Error(err))
	}

	// The flight is shared, so no single caller's cancellation may end it.
	// fetch still bounds it with f.timeout.
	v, ferr, _ := f.group.Do(path, func() (any, error) {
		ks, err := f.fetch(context.WithoutCancel(ctx), url)
		if err != nil {
			return nil, err
		}
		if err := f.persist(path, ks.Raw()); err != nil {
			f.log.Warn("jwks cache write failed", zap.String("url", url), zap.Error(err))
		}
		return ks, nil
	})
	if ferr == nil {
		f.record(SourceFetched)
		return v.(*KeySet), nil
	}

	if cached != nil {
		f.log.Warn("jwks fetch failed; serving stale cache",
			zap.String("url", url),
			zap.Duration("age", f.now().Sub(fetchedAt)),
			zap.Error(ferr),
		)
		f.record(SourceStale)
		return cached, nil
	}
	f.log.Error("jwks fetch failed; no cached copy", zap.String("url", url), zap.Error(ferr))
	f.record(SourceError)
	return nil, fmt.Errorf("%w: %s: %w", ErrNoKeySet, url, ferr)
}

func (f *FileCache) fetch(ctx context.Context, url string) (*KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("key fetch %s: %s", url, res.Status)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrMalformedKeySet, maxDocumentBytes)
	}
	return ParseKeySet(body)
}

func (f *FileCache) readCached(path string) (*KeySet, time.Time, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	ks, err := ParseKeySet(b)
	if err != nil {
		return nil, time.Time{}, err
	}
	return ks, st.ModTime(), nil
}

// persist writes via temp file + rename so concurrent readers, including
// other processes, never see a partial document.
func (f *FileCache) persist(path string, raw []byte) (err error) {
	tmp, err := os.CreateTemp(f.dir, ".jwks-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	now := f.now()
	if err = os.Chtimes(tmp.Name(), now, now); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *FileCache) pathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}

func (f *FileCache) record(source string) {
	if f.rec != nil {
		f.rec.JWKSResolved(source)
	}
}
