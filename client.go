package pricecheck

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Client owns the local store of one profile and the services built on it.
// It is the single handle an application opens at start and closes at
// shutdown.
type Client struct {
	store     *Store
	repo      *Repository
	hierarchy *Hierarchy
	catalog   *Catalog
	config    Config
	log       *logrus.Logger

	mu     sync.Mutex
	closed bool
}

// New opens the local store described by cfg and wires the services.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	repo := NewRepository(store, log)
	repo.EnsureIndexes()
	hierarchy := NewHierarchy(repo, log)

	policy := DefaultRetryPolicy()
	policy.MaxAttempts = cfg.CreateAttempts
	catalog := NewCatalog(repo, hierarchy,
		WithCreatePolicy(policy),
		WithCatalogLogger(log),
	)

	log.WithFields(logrus.Fields{
		"profile": cfg.Profile,
		"path":    cfg.LocalPath,
		"offline": cfg.IsOffline(),
	}).Debug("client opened")

	return &Client{
		store:     store,
		repo:      repo,
		hierarchy: hierarchy,
		catalog:   catalog,
		config:    cfg,
		log:       log,
	}, nil
}

// Store returns the local document store.
func (c *Client) Store() *Store { return c.store }

// Repository returns the entity query layer.
func (c *Client) Repository() *Repository { return c.repo }

// Hierarchy returns the hierarchy service.
func (c *Client) Hierarchy() *Hierarchy { return c.hierarchy }

// Catalog returns the product operations.
func (c *Client) Catalog() *Catalog { return c.catalog }

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.config }

// Logger returns the client's logger.
func (c *Client) Logger() *logrus.Logger { return c.log }

// Stats returns store statistics.
func (c *Client) Stats() (*StoreStats, error) {
	return c.store.Stats()
}

// Close closes the local store. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}
