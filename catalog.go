package pricecheck

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Catalog implements the product operations of a collection session:
// creating products from scans, recording and discarding observed prices,
// and listing products.
type Catalog struct {
	repo   *Repository
	hier   *Hierarchy
	codes  CodeGenerator
	policy RetryPolicy
	now    func() time.Time
	log    logrus.FieldLogger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCodeGenerator sets the source of new product codes.
func WithCodeGenerator(g CodeGenerator) CatalogOption {
	return func(c *Catalog) { c.codes = g }
}

// WithClock sets the time source for CreatedAt and CollectedDate.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) { c.now = now }
}

// WithCreatePolicy sets the retry bound for product creation.
func WithCreatePolicy(p RetryPolicy) CatalogOption {
	return func(c *Catalog) { c.policy = p }
}

// WithCatalogLogger sets the logger.
func WithCatalogLogger(log logrus.FieldLogger) CatalogOption {
	return func(c *Catalog) { c.log = log }
}

// NewCatalog creates a catalog over the query layer and hierarchy service.
func NewCatalog(repo *Repository, hier *Hierarchy, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		repo:   repo,
		hier:   hier,
		codes:  NewSessionCodeGenerator(),
		policy: DefaultRetryPolicy(),
		now:    time.Now,
		log:    discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "catalog")
	return c
}

// CreateOrGet returns a product for ean in the given context, creating it if
// needed. The hierarchy path is only used when the context came from
// hierarchy browsing; levels that are not known are marked pending. Each
// attempt generates a code and returns the product already stored under the
// resulting key if there is one. Revision conflicts on the write start a new
// attempt; after the last one the error wraps ErrCreationExhausted.
func (c *Catalog) CreateOrGet(ctx context.Context, ean string, cc CollectContext, by CreatedBy) (*Product, error) {
	var path Path
	if cc.FromHierarchy {
		path = cc.Path
	}
	path = path.WithPlaceholders()

	var texts Texts
	if cc.FromHierarchy {
		texts = c.hier.FetchTexts(cc.Scope, path)
	}
	shop := c.repo.CompetitorShop(cc.Scope)

	var result *Product
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		code := c.codes.NextCode()
		key := BuildSyncKey(cc.Scope, path, code)

		existing, err := c.repo.FindBySyncKey(key)
		if err != nil {
			return err
		}
		if existing != nil {
			c.log.WithField("sync_key", key).Debug("product already exists")
			result = existing
			return nil
		}

		p := c.newProduct(key, code, ean, cc.Scope, shop, by)
		p.SetPath(path)
		p.SetTexts(texts)
		doc, err := p.Document()
		if err != nil {
			return err
		}
		res, err := c.repo.Put(doc)
		if err != nil {
			if IsConflict(err) {
				c.log.WithFields(logrus.Fields{"sync_key": key, "attempt": attempt}).Warn("product key conflict")
			}
			return err
		}
		p.Rev = res.Rev
		result = p
		return nil
	})

	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		return nil, fmt.Errorf("catalog: create product: %w: %w", ErrCreationExhausted, exhausted.Err)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: create product: %w", err)
	}
	return result, nil
}

func (c *Catalog) newProduct(key, code, ean string, scope Scope, shop CompetitorShop, by CreatedBy) *Product {
	name := NewProductName
	if ean != "" {
		name = scannedNamePrefix + ean
	}
	currency := shop.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Product{
		ID:                  key,
		EntityName:          EntityProducts,
		SyncKey:             key,
		Code:                code,
		Customer:            scope.Customer,
		Assortment:          scope.Assortment,
		SalesOrganization:   shop.SalesOrganization,
		DistributionChannel: shop.DistributionChannel,
		Currency:            currency,
		EAN:                 ean,
		MaterialDescription: name,
		LiquidContentUnit:   DefaultLiquidUnit,
		IsNewProduct:        true,
		CreatedAt:           At(c.now()),
		CreatedBy:           by,
	}
}

// ProcessBarcode handles a scanned barcode: a product of the scope with that
// EAN is returned as is, otherwise a new one is created. created reports
// which happened.
func (c *Catalog) ProcessBarcode(ctx context.Context, code string, cc CollectContext) (p *Product, created bool, err error) {
	if err := ValidateEAN(code); err != nil {
		return nil, false, err
	}

	found, err := c.repo.FindByEAN(code, cc.Scope)
	if err != nil {
		return nil, false, fmt.Errorf("catalog: lookup EAN %s: %w", code, err)
	}
	if len(found) > 0 {
		return found[0], false, nil
	}

	p, err = c.CreateOrGet(ctx, code, cc, CreatedByBarcodeScanner)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// CreateManual creates a product without a barcode.
func (c *Catalog) CreateManual(ctx context.Context, cc CollectContext) (*Product, error) {
	return c.CreateOrGet(ctx, "", cc, CreatedByManual)
}

// Observation is the data an agent records for a product.
type Observation struct {
	MaterialDescription string
	Brand               string
	EAN                 string
	NormalPrice         Price
	PromoPrice          Price
	PromoType           string
	PromoStartDate      DateTime
	PromoEndDate        DateTime
	Observations        string
	LiquidContent       string
	LiquidContentUnit   string
	Path                Path
}

// ObservationFor returns the editable observation of p. Products still
// awaiting classification start with an empty hierarchy.
func ObservationFor(p *Product) Observation {
	o := Observation{
		MaterialDescription: p.MaterialDescription,
		Brand:               p.Brand,
		EAN:                 p.EAN,
		NormalPrice:         p.NormalPrice,
		PromoPrice:          p.PromoPrice,
		PromoType:           p.PromoType,
		PromoStartDate:      p.PromoStartDate,
		PromoEndDate:        p.PromoEndDate,
		Observations:        p.Observations,
		LiquidContent:       p.LiquidContent,
		LiquidContentUnit:   p.LiquidContentUnit,
	}
	if !p.PendingClassification() {
		o.Path = p.Path()
	}
	return o
}

// Validate checks that the observation can be saved.
func (o Observation) Validate() error {
	if strings.TrimSpace(o.MaterialDescription) == "" {
		return &ValidationError{Field: "MaterialDescription", Message: "required"}
	}
	if !o.NormalPrice.IsPositive() {
		return &ValidationError{Field: "NormalPrice", Message: "must be greater than zero"}
	}
	if o.EAN != "" {
		if err := ValidateEAN(o.EAN); err != nil {
			return err
		}
	}
	if missing := o.Path.Unassigned(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, l := range missing {
			names[i] = l.String()
		}
		return &ValidationError{Field: "hierarchy", Message: "missing " + strings.Join(names, ", ")}
	}
	return nil
}

// SaveObservation records obs on the product stored under syncKey and flags
// it as collected. When the new hierarchy changes the product's key, the
// product is written under the new key and the old document removed; if the
// removal fails the new document is removed again so that exactly one copy
// remains.
func (c *Catalog) SaveObservation(ctx context.Context, syncKey string, obs Observation) (*Product, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	oldDoc, err := c.repo.Get(syncKey)
	if err != nil {
		return nil, fmt.Errorf("catalog: save %s: %w", syncKey, err)
	}
	old, err := DecodeProduct(oldDoc)
	if err != nil {
		return nil, fmt.Errorf("catalog: save %s: %w", syncKey, err)
	}

	p := *old
	p.MaterialDescription = strings.TrimSpace(obs.MaterialDescription)
	p.Brand = obs.Brand
	p.EAN = obs.EAN
	p.NormalPrice = obs.NormalPrice
	p.PromoPrice = obs.PromoPrice
	p.PromoType = obs.PromoType
	p.PromoStartDate = obs.PromoStartDate
	p.PromoEndDate = obs.PromoEndDate
	p.Observations = obs.Observations
	p.LiquidContent = obs.LiquidContent
	p.LiquidContentUnit = obs.LiquidContentUnit
	if p.LiquidContentUnit == "" {
		p.LiquidContentUnit = DefaultLiquidUnit
	}
	p.SetPath(obs.Path)
	p.SetTexts(c.hier.FetchTexts(old.Scope(), obs.Path))
	p.IsCollected = true
	p.CollectedDate = At(c.now())

	code := old.Code
	if code == "" {
		code = CodeFromSyncKey(old.ID)
	}
	newKey := BuildSyncKey(old.Scope(), obs.Path, code)
	log := c.log.WithField("sync_key", old.ID)

	if newKey == old.ID {
		doc, err := p.Document()
		if err != nil {
			return nil, err
		}
		res, err := c.repo.Put(doc)
		if err != nil {
			return nil, fmt.Errorf("catalog: save %s: %w", old.ID, err)
		}
		p.Rev = res.Rev
		log.Info("observation saved")
		return &p, nil
	}

	p.ID = newKey
	p.SyncKey = newKey
	p.Rev = ""
	newDoc, err := p.Document()
	if err != nil {
		return nil, err
	}
	res, err := c.repo.Put(newDoc)
	if err != nil {
		return nil, fmt.Errorf("catalog: save %s as %s: %w", old.ID, newKey, err)
	}

	if err := c.repo.Remove(oldDoc); err != nil {
		newDoc[FieldRev] = res.Rev
		if rerr := c.repo.Remove(newDoc); rerr != nil {
			log.WithError(rerr).WithField("new_sync_key", newKey).Error("could not roll back reclassified product")
		}
		return nil, fmt.Errorf("catalog: save %s: remove previous key: %w", old.ID, err)
	}

	p.Rev = res.Rev
	log.WithField("new_sync_key", newKey).Info("observation saved under new key")
	return &p, nil
}

// DiscardObservation clears the collected flag and date of a product. The
// product itself stays in the store.
func (c *Catalog) DiscardObservation(ctx context.Context, syncKey string) (*Product, error) {
	doc, err := c.repo.Get(syncKey)
	if err != nil {
		return nil, fmt.Errorf("catalog: discard %s: %w", syncKey, err)
	}
	p, err := DecodeProduct(doc)
	if err != nil {
		return nil, fmt.Errorf("catalog: discard %s: %w", syncKey, err)
	}

	p.IsCollected = false
	p.CollectedDate = DateTime{}
	out, err := p.Document()
	if err != nil {
		return nil, err
	}
	res, err := c.repo.Put(out)
	if err != nil {
		return nil, fmt.Errorf("catalog: discard %s: %w", syncKey, err)
	}
	p.Rev = res.Rev
	return p, nil
}

// Search returns the products of scope whose description, EAN, brand or
// code contains query, ignoring case. An empty query matches everything.
func (c *Catalog) Search(scope Scope, query string) ([]*Product, error) {
	products, err := c.repo.Products(ScopeFilters(scope)...)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products, nil
	}

	var matches []*Product
	for _, p := range products {
		for _, field := range []string{p.MaterialDescription, p.EAN, p.Brand, p.Code} {
			if strings.Contains(strings.ToLower(field), q) {
				matches = append(matches, p)
				break
			}
		}
	}
	return matches, nil
}

// ProductsIn returns the products of scope filed under path. Absent levels
// are not constrained.
func (c *Catalog) ProductsIn(scope Scope, path Path) ([]*Product, error) {
	filters := ScopeFilters(scope)
	for _, l := range Levels() {
		if k := path.Get(l); !k.IsAbsent() {
			filters = append(filters, Eq(l.KeyField(), k.Encode(l)))
		}
	}
	products, err := c.repo.Products(filters...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return products, nil
}

// CollectedPrices returns every collected product, most recently collected
// first.
func (c *Catalog) CollectedPrices() ([]*Product, error) {
	products, err := c.repo.SelectPending()
	if err != nil {
		return nil, fmt.Errorf("catalog: collected prices: %w", err)
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CollectedDate.After(products[j].CollectedDate.Time)
	})
	return products, nil
}
