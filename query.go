package pricecheck

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// DocumentStore is the subset of the local store the query layer needs.
// *Store satisfies it.
type DocumentStore interface {
	Get(id string) (Document, error)
	Put(doc Document) (*PutResult, error)
	BulkPut(docs []Document) ([]BulkResult, error)
	Find(sel Selector) ([]Document, error)
	Remove(doc Document) error
	EnsureIndex(fields ...string) error
}

// Filter is a single equality constraint.
type Filter struct {
	Field string
	Value any
}

// Eq returns a filter matching documents whose field equals value.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Repository is the entity query layer: typed lookups and writes over the
// document store, with bounded retries on revision conflicts.
type Repository struct {
	store  DocumentStore
	policy RetryPolicy
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewRepository creates a query layer over store. A nil logger discards.
func NewRepository(store DocumentStore, log logrus.FieldLogger) *Repository {
	if log == nil {
		log = discardLogger()
	}
	return &Repository{
		store:  store,
		policy: DefaultRetryPolicy(),
		log:    log.WithField("component", "repository"),
		now:    time.Now,
	}
}

// EnsureIndexes creates the indexes the collection workflow queries by.
// Failures only cost speed, so they are logged and not returned.
func (r *Repository) EnsureIndexes() {
	for _, fields := range [][]string{
		{FieldEntityName},
		{FieldEntityName, FieldEAN},
		{FieldEntityName, FieldIsCollected},
	} {
		if err := r.store.EnsureIndex(fields...); err != nil {
			r.log.WithError(err).WithField("fields", fields).Warn("index creation failed")
		}
	}
}

// Get returns the document with the given id.
func (r *Repository) Get(id string) (Document, error) {
	return r.store.Get(id)
}

// Put writes a single document.
func (r *Repository) Put(doc Document) (*PutResult, error) {
	return r.store.Put(doc)
}

// Remove deletes a document at its current revision.
func (r *Repository) Remove(doc Document) error {
	return r.store.Remove(doc)
}

// FindByEntityName returns the documents of one entity kind matching every
// filter.
func (r *Repository) FindByEntityName(entity EntityName, filters ...Filter) ([]Document, error) {
	sel := Selector{FieldEntityName: string(entity)}
	for _, f := range filters {
		sel[f.Field] = f.Value
	}
	docs, err := r.store.Find(sel)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", entity, err)
	}
	return docs, nil
}

// Products returns the products matching every filter.
func (r *Repository) Products(filters ...Filter) ([]*Product, error) {
	docs, err := r.FindByEntityName(EntityProducts, filters...)
	if err != nil {
		return nil, err
	}
	return decodeProducts(docs)
}

// FindByEAN returns the products of scope carrying the given barcode.
func (r *Repository) FindByEAN(ean string, scope Scope) ([]*Product, error) {
	return r.Products(
		Eq(FieldEAN, ean),
		Eq(FieldCustomer, scope.Customer),
		Eq(FieldAssortment, scope.Assortment),
	)
}

// FindBySyncKey returns the product stored under key, or nil if there is
// none.
func (r *Repository) FindBySyncKey(key string) (*Product, error) {
	doc, err := r.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeProduct(doc)
}

// SelectPending returns every product flagged as collected, in id order.
func (r *Repository) SelectPending() ([]*Product, error) {
	return r.Products(Eq(FieldIsCollected, true))
}

// Count returns the number of documents matching sel.
func (r *Repository) Count(sel Selector) (int, error) {
	docs, err := r.store.Find(sel)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return len(docs), nil
}

// IsEmpty reports whether the store holds no documents at all.
func (r *Repository) IsEmpty() (bool, error) {
	n, err := r.Count(nil)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// CompetitorShops lists every competitor shop.
func (r *Repository) CompetitorShops() ([]CompetitorShop, error) {
	docs, err := r.FindByEntityName(EntityCompetitorShopList)
	if err != nil {
		return nil, err
	}
	shops := make([]CompetitorShop, 0, len(docs))
	for _, doc := range docs {
		var shop CompetitorShop
		if err := doc.Decode(&shop); err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, nil
}

// CompetitorShop returns the metadata of the competitor shop for scope.
// Lookup failures and missing records yield the defaults, never an error.
func (r *Repository) CompetitorShop(scope Scope) CompetitorShop {
	fallback := CompetitorShop{Customer: scope.Customer, Assortment: scope.Assortment, Currency: DefaultCurrency}

	docs, err := r.FindByEntityName(EntityCompetitorShopList,
		Eq(FieldCustomer, scope.Customer),
		Eq(FieldAssortment, scope.Assortment),
	)
	if err != nil {
		r.log.WithError(err).WithField("customer", scope.Customer).Warn("competitor lookup failed")
		return fallback
	}
	if len(docs) == 0 {
		return fallback
	}

	var shop CompetitorShop
	if err := docs[0].Decode(&shop); err != nil {
		r.log.WithError(err).WithField("customer", scope.Customer).Warn("competitor record unreadable")
		return fallback
	}
	if shop.Currency == "" {
		shop.Currency = DefaultCurrency
	}
	return shop
}

// UserCard returns the signed-in agent's card, or nil if none was
// downloaded.
func (r *Repository) UserCard() (*UserCard, error) {
	docs, err := r.FindByEntityName(EntityUserCard)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var card UserCard
	if err := docs[0].Decode(&card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateDocument stores a new document. If its id is taken, the id (and
// SyncKey, when present) is suffixed with a timestamp and random number
// and the write is retried within the retry bound.
func (r *Repository) CreateDocument(ctx context.Context, doc Document) (*PutResult, error) {
	doc = doc.Clone()
	delete(doc, FieldRev)
	base := doc.ID()

	var res *PutResult
	err := r.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			id := fmt.Sprintf("%s_%d_%d", base, r.now().UnixMilli(), rand.Intn(1000))
			doc[FieldID] = id
			if _, ok := doc[FieldSyncKey]; ok {
				doc[FieldSyncKey] = id
			}
			r.log.WithFields(logrus.Fields{"id": base, "retry_id": id}).Debug("create conflict, retrying with new id")
		}
		var err error
		res, err = r.store.Put(doc)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", base, err)
	}
	return res, nil
}

// UpdateDocument merges updates into the stored document. A conflicting
// concurrent write causes a re-read and another attempt.
func (r *Repository) UpdateDocument(ctx context.Context, id string, updates map[string]any) (*PutResult, error) {
	var res *PutResult
	err := r.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		doc, err := r.store.Get(id)
		if err != nil {
			return err
		}
		for k, v := range updates {
			if k == FieldID || k == FieldRev {
				continue
			}
			doc[k] = v
		}
		res, err = r.store.Put(doc)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}
	return res, nil
}

// DeleteDocument removes the document with the given id at its current
// revision.
func (r *Repository) DeleteDocument(id string) error {
	doc, err := r.store.Get(id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if err := r.store.Remove(doc); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// BulkDocs writes many documents, reporting per-document outcomes.
func (r *Repository) BulkDocs(docs []Document) ([]BulkResult, error) {
	return r.store.BulkPut(docs)
}

// MarkUploaded marks the first n products, in submission order, as
// uploaded at the given time. It returns how many were marked.
func (r *Repository) MarkUploaded(products []*Product, n int, at time.Time) (int, error) {
	if n > len(products) {
		n = len(products)
	}
	ok := make([]bool, len(products))
	for i := 0; i < n; i++ {
		ok[i] = true
	}
	return r.MarkUploadedItems(products, ok, at)
}

// MarkUploadedItems marks the products whose ok entry is true as uploaded:
// IsCollected is cleared and UploadedDate set. Each write uses the revision
// read when the product was selected; a product edited since then keeps its
// newer state and stays pending. It returns how many were marked.
func (r *Repository) MarkUploadedItems(products []*Product, ok []bool, at time.Time) (int, error) {
	marked := 0
	for i, p := range products {
		if i >= len(ok) || !ok[i] {
			continue
		}
		updated := *p
		updated.IsCollected = false
		updated.UploadedDate = At(at)

		doc, err := updated.Document()
		if err != nil {
			return marked, err
		}
		res, err := r.store.Put(doc)
		if IsConflict(err) {
			r.log.WithField("sync_key", p.ID).Warn("product changed during upload, leaving it pending")
			continue
		}
		if err != nil {
			return marked, fmt.Errorf("mark uploaded %s: %w", p.ID, err)
		}
		p.IsCollected = false
		p.UploadedDate = updated.UploadedDate
		p.Rev = res.Rev
		marked++
	}
	return marked, nil
}

func decodeProducts(docs []Document) ([]*Product, error) {
	products := make([]*Product, 0, len(docs))
	for _, doc := range docs {
		p, err := DecodeProduct(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}
