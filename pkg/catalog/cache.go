package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	errs "cmsdl/pkg/errors"
	"cmsdl/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotCached is returned by Load when there is no usable cache file
var ErrNotCached = errors.New("course catalog is not cached")

// PageFetcher fetches and parses a portal page
type PageFetcher interface {
	Document(ctx context.Context, url string) (*goquery.Document, error)
}

// ParseFunc extracts catalog entries from the portal home page
type ParseFunc func(doc *goquery.Document) ([]Entry, error)

// Cache persists the course catalog as an indented JSON object so that
// later runs skip the home page scrape.
type Cache struct {
	path    string
	homeURL string
	fetcher PageFetcher
	parse   ParseFunc
	logger  logger.Logger
}

// NewCache creates a cache backed by the file at path. fetcher and parse are
// only used when the catalog has to be rebuilt and may be nil for read-only use.
func NewCache(path, homeURL string, fetcher PageFetcher, parse ParseFunc, log logger.Logger) *Cache {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Cache{
		path:    path,
		homeURL: homeURL,
		fetcher: fetcher,
		parse:   parse,
		logger:  log.WithField("component", "catalog"),
	}
}

func (c *Cache) Path() string {
	return c.path
}

// Load reads the cache file without touching the network. A missing or
// empty file yields ErrNotCached; unreadable content a cache error.
func (c *Cache) Load() (*Catalog, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("failed to read catalog cache: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNotCached
	}

	cat := New()
	if err := json.Unmarshal(data, cat); err != nil {
		return nil, errs.NewCacheError(c.path, err)
	}
	return cat, nil
}

// LoadOrBuild returns the cached catalog, rebuilding it from the portal
// home page when the cache is absent or corrupt.
func (c *Cache) LoadOrBuild(ctx context.Context) (*Catalog, error) {
	cat, err := c.Load()
	switch {
	case err == nil:
		c.logger.WithField("courses", cat.Len()).Info("Loaded cached courses")
		return cat, nil
	case errors.Is(err, ErrNotCached):
		c.logger.Info("Courses cache not found, fetching course list")
	case errs.IsType(err, errs.ErrorTypeCache):
		c.logger.WithError(err).Warn("Courses cache is corrupt, rebuilding")
	default:
		return nil, err
	}

	return c.Build(ctx)
}

// Build scrapes the home page and replaces the cache file
func (c *Cache) Build(ctx context.Context) (*Catalog, error) {
	if c.fetcher == nil || c.parse == nil {
		return nil, errors.New("catalog cache has no page source")
	}

	doc, err := c.fetcher.Document(ctx, c.homeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch course list: %w", err)
	}

	entries, err := c.parse(doc)
	if err != nil {
		return nil, err
	}

	cat := New(entries...)
	if err := c.Save(cat); err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"courses": cat.Len(),
		"path":    c.path,
	}).Info("Cached course list")
	return cat, nil
}

// Save writes cat atomically with a 4-space indent
func (c *Cache) Save(cat *Catalog) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(cat); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	data := buf.Bytes()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0644)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog cache: %w", err)
	}
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove catalog cache: %w", err)
	}
	return nil
}
