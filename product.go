package pricecheck

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the central mutable entity: a catalogue item of a competitor
// shop, optionally carrying an observed price.
type Product struct {
	ID         string     `json:"_id"`
	Rev        string     `json:"_rev,omitempty"`
	EntityName EntityName `json:"entityName"`
	SyncKey    string     `json:"SyncKey"`
	Code       string     `json:"Product"`

	Customer            string `json:"Customer"`
	Assortment          string `json:"Assortment"`
	SalesOrganization   string `json:"SalesOrganization"`
	DistributionChannel string `json:"DistributionChannel"`
	Currency            string `json:"Currency"`

	Area         string `json:"Area"`
	Division     string `json:"Division"`
	Family       string `json:"Family"`
	Category     string `json:"Category"`
	ProductGroup string `json:"ProductGroup"`

	AreaText         string `json:"AreaText"`
	DivisionText     string `json:"DivisionText"`
	FamilyText       string `json:"FamilyText"`
	CategoryText     string `json:"CategoryText"`
	ProductGroupText string `json:"ProductGroupText"`

	EAN                 string   `json:"EAN"`
	MaterialDescription string   `json:"MaterialDescription"`
	Brand               string   `json:"Brand"`
	NormalPrice         Price    `json:"NormalPrice"`
	PromoPrice          Price    `json:"PromoPrice"`
	PromoType           string   `json:"PromoType"`
	PromoStartDate      DateTime `json:"PromoStartDate"`
	PromoEndDate        DateTime `json:"PromoEndDate"`
	Observations        string   `json:"Observations"`
	LiquidContent       string   `json:"LiquidContent"`
	LiquidContentUnit   string   `json:"LiquidContentUnit"`

	IsCollected   bool      `json:"IsCollected"`
	CollectedDate DateTime  `json:"CollectedDate"`
	IsNewProduct  bool      `json:"IsNewProduct"`
	CreatedAt     DateTime  `json:"CreatedAt"`
	CreatedBy     CreatedBy `json:"CreatedBy"`
	UploadedDate  DateTime  `json:"UploadedDate"`
	Timestamp     string    `json:"timestamp,omitempty"`

	// doc is the stored document the product was decoded from. Fields the
	// struct does not model are carried over from it on write.
	doc Document
}

// DecodeProduct converts a stored document into a Product.
func DecodeProduct(doc Document) (*Product, error) {
	if doc.EntityName() != EntityProducts {
		return nil, fmt.Errorf("document %s is %q, not %s", doc.ID(), doc.EntityName(), EntityProducts)
	}
	var p Product
	if err := textualize(doc).Decode(&p); err != nil {
		return nil, err
	}
	p.doc = doc
	return &p, nil
}

// textFields holds the JSON names of the Product fields typed as strings.
var textFields = func() map[string]bool {
	fields := make(map[string]bool)
	t := reflect.TypeOf(Product{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.String {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name != "" && name != "-" {
			fields[name] = true
		}
	}
	return fields
}()

// textualize renders numeric and boolean values of text fields as strings.
// OData v4 backends send Edm.Decimal columns such as LiquidContent as JSON
// numbers. The document is copied only when something changes.
func textualize(doc Document) Document {
	out, copied := doc, false
	for k, v := range doc {
		if !textFields[k] {
			continue
		}
		switch v.(type) {
		case json.Number, float64, int, bool:
			if !copied {
				out, copied = doc.Clone(), true
			}
			out[k] = doc.String(k)
		}
	}
	return out
}

// Document renders the product for storage, preserving fields of the
// document it was decoded from that the struct does not model.
func (p *Product) Document() (Document, error) {
	fresh, err := EncodeDocument(p)
	if err != nil {
		return nil, err
	}
	if p.doc == nil {
		return fresh, nil
	}
	out := p.doc.Clone()
	for k, v := range fresh {
		out[k] = v
	}
	if p.Rev == "" {
		delete(out, FieldRev)
	}
	return out, nil
}

// Scope returns the competitor/assortment pair the product belongs to.
func (p *Product) Scope() Scope {
	return Scope{Customer: p.Customer, Assortment: p.Assortment}
}

// Path returns the product's hierarchy position.
func (p *Product) Path() Path {
	return NewPath(p.Area, p.Division, p.Family, p.Category, p.ProductGroup)
}

// SetPath stores path into the product's hierarchy key fields.
func (p *Product) SetPath(path Path) {
	keys := path.Encoded()
	p.Area, p.Division, p.Family, p.Category, p.ProductGroup = keys[0], keys[1], keys[2], keys[3], keys[4]
}

// Texts returns the denormalised hierarchy descriptions, broadest first.
func (p *Product) Texts() Texts {
	return Texts{p.AreaText, p.DivisionText, p.FamilyText, p.CategoryText, p.ProductGroupText}
}

// SetTexts stores denormalised hierarchy descriptions.
func (p *Product) SetTexts(t Texts) {
	p.AreaText, p.DivisionText, p.FamilyText, p.CategoryText, p.ProductGroupText = t[0], t[1], t[2], t[3], t[4]
}

// PendingClassification reports whether any hierarchy level still holds a
// placeholder, which is the case for freshly scanned products.
func (p *Product) PendingClassification() bool {
	for _, k := range p.Path() {
		if k.IsPending() {
			return true
		}
	}
	return false
}

// Texts holds one description per hierarchy level.
type Texts [NumLevels]string

// Price is an optional monetary amount. It is stored as a JSON number and
// tolerates numeric strings, empty strings and nulls on input.
type Price struct {
	decimal.NullDecimal
}

// NewPrice returns a set price.
func NewPrice(d decimal.Decimal) Price {
	return Price{decimal.NullDecimal{Decimal: d, Valid: true}}
}

// ParsePrice parses a user-entered amount. A comma decimal separator is
// accepted. An empty string yields an unset price.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Price{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, &ValidationError{Field: "price", Message: fmt.Sprintf("invalid amount %q", s)}
	}
	return NewPrice(d), nil
}

// IsPositive reports whether the price is set and greater than zero.
func (p Price) IsPositive() bool { return p.Valid && p.Decimal.IsPositive() }

// Fixed2 renders the price with exactly two decimals, "0.00" when unset.
func (p Price) Fixed2() string {
	if !p.Valid {
		return "0.00"
	}
	return p.Decimal.StringFixed(2)
}

func (p Price) String() string {
	if !p.Valid {
		return ""
	}
	return p.Decimal.String()
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(p.Decimal.String()), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*p = Price{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		*p = Price{}
		return nil
	}
	*p = NewPrice(d)
	return nil
}

// DateTime is an optional instant. It is stored as an ISO-8601 UTC string
// with millisecond precision and null when unset; on input it also accepts
// OData "/Date(ms)/" literals, plain dates and epoch milliseconds.
type DateTime struct {
	time.Time
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var odataDate = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// At returns a set DateTime.
func At(t time.Time) DateTime { return DateTime{t} }

// Ptr returns the time, or nil when unset.
func (d DateTime) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(isoMillis))
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	*d = DateTime{}
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		d.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if t, ok := ParseDateTime(s); ok {
		d.Time = t
	}
	return nil
}

// ParseDateTime parses the date forms found in stored and downloaded
// records.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := odataDate.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
