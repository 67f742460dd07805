package pricecheck

import "time"

// EntityName discriminates the kinds of documents sharing the local store.
type EntityName string

const (
	EntityProducts           EntityName = "Products"
	EntityAreas              EntityName = "Areas"
	EntityDivisions          EntityName = "Divisions"
	EntityFamilies           EntityName = "Families"
	EntityCategories         EntityName = "Categories"
	EntityProductGroups      EntityName = "ProductGroups"
	EntityCompetitorShopList EntityName = "CompetitorShopList"
	EntityShoppingList       EntityName = "ShoppingList"
	EntityUserCard           EntityName = "UserCard"
	EntityCollectedPrices    EntityName = "CollectedPrices"
)

// ValidEntityNames returns every entity name the store may hold.
func ValidEntityNames() []EntityName {
	return []EntityName{
		EntityProducts,
		EntityAreas,
		EntityDivisions,
		EntityFamilies,
		EntityCategories,
		EntityProductGroups,
		EntityCompetitorShopList,
		EntityShoppingList,
		EntityUserCard,
		EntityCollectedPrices,
	}
}

// IsValid checks if the entity name is one of the known entity kinds.
func (e EntityName) IsValid() bool {
	for _, valid := range ValidEntityNames() {
		if e == valid {
			return true
		}
	}
	return false
}

// DownloadSets returns the canonical entity sets fetched during a full
// refresh, in fetch order.
func DownloadSets() []EntityName {
	return []EntityName{
		EntityCompetitorShopList,
		EntityShoppingList,
		EntityProducts,
		EntityProductGroups,
		EntityCategories,
		EntityFamilies,
		EntityDivisions,
		EntityAreas,
		EntityUserCard,
	}
}

// CreatedBy records how a locally created product came to exist.
type CreatedBy string

const (
	CreatedByBarcodeScanner CreatedBy = "BarcodeScanner"
	CreatedByManual         CreatedBy = "ManualCreate"
)

// Well-known document field names.
const (
	FieldID          = "_id"
	FieldRev         = "_rev"
	FieldEntityName  = "entityName"
	FieldTimestamp   = "timestamp"
	FieldSyncKey     = "SyncKey"
	FieldEAN         = "EAN"
	FieldCustomer    = "Customer"
	FieldAssortment  = "Assortment"
	FieldIsCollected = "IsCollected"
)

// Product defaults and limits.
const (
	MaxCreateAttempts  = 3
	DefaultCurrency    = "EUR"
	DefaultLiquidUnit  = "L"
	NewProductName     = "NOVO PRODUTO"
	scannedNamePrefix  = "SCAN - EAN: "
	customerNumberSize = 10
)

// LastSyncKey is the metadata key holding the time of the last full refresh.
const LastSyncKey = "lastSyncTimestamp"

// Scope identifies the competitor shop and assortment a collection session
// works in. Every hierarchy node and product belongs to exactly one scope.
type Scope struct {
	Customer   string `json:"customer"`
	Assortment string `json:"assortment"`
}

// CollectContext is the navigation context a product is created from.
// Path levels are only honoured when FromHierarchy is set, i.e. the agent
// reached the product by browsing the hierarchy rather than a flat search.
type CollectContext struct {
	Scope
	Path          Path
	FromHierarchy bool
}

// CompetitorShop is a competitor store the agent collects prices in.
type CompetitorShop struct {
	ID                  string `json:"_id,omitempty"`
	Customer            string `json:"Customer"`
	Assortment          string `json:"Assortment"`
	Name                string `json:"Name,omitempty"`
	Currency            string `json:"Currency,omitempty"`
	SalesOrganization   string `json:"SalesOrganization,omitempty"`
	DistributionChannel string `json:"DistributionChannel,omitempty"`
}

// UserCard describes the signed-in field agent.
type UserCard struct {
	ID       string `json:"_id,omitempty"`
	User     string `json:"User,omitempty"`
	FullName string `json:"FullName"`
	Email    string `json:"Email,omitempty"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	DocumentCount int                `json:"document_count"`
	ByEntity      map[EntityName]int `json:"by_entity"`
	PendingSync   int                `json:"pending_sync"`
	LastSync      time.Time          `json:"last_sync"`
	SchemaVersion string             `json:"schema_version"`
}
