package pricecheck

import (
	"fmt"
	"time"
)

// UploadRecord is one collected price in the shape the backend's
// CollectedPrices collection accepts.
type UploadRecord struct {
	SyncKey        string  `json:"SyncKey"`
	Product        string  `json:"Product"`
	MaterialName   string  `json:"MaterialName"`
	EAN            string  `json:"EAN"`
	Brand          string  `json:"Brand"`
	Customer       string  `json:"Customer"`
	Assortment     string  `json:"Assortment"`
	Area           string  `json:"Area"`
	Division       string  `json:"Division"`
	Family         string  `json:"Family"`
	Category       string  `json:"Category"`
	ProductGroup   string  `json:"ProductGroup"`
	NormalPrice    string  `json:"NormalPrice"`
	PromoPrice     *string `json:"PromoPrice"`
	PromoType      string  `json:"PromoType"`
	PromoStartDate *string `json:"PromoStartDate"`
	PromoEndDate   *string `json:"PromoEndDate"`
	Observations   string  `json:"Observations"`
	LiquidContent  string  `json:"LiquidContent"`
	LiquidUnit     string  `json:"LiquidUnit"`
	CollectedDate  *string `json:"CollectedDate"`
	CollectedTime  string  `json:"CollectedTime"`
	LastChangedAt  string  `json:"LastChangedAt"`
}

// ToPayload maps a collected product to its upload record. now stands in
// for a missing collection time. New products go up without a code so the
// backend assigns its own.
func ToPayload(p *Product, now time.Time) UploadRecord {
	code := p.Code
	if p.IsNewProduct {
		code = ""
	}
	unit := p.LiquidContentUnit
	if unit == "" {
		unit = DefaultLiquidUnit
	}

	rec := UploadRecord{
		SyncKey:        p.SyncKey,
		Product:        code,
		MaterialName:   p.MaterialDescription,
		EAN:            p.EAN,
		Brand:          p.Brand,
		Customer:       PadCustomer(p.Customer),
		Assortment:     p.Assortment,
		Area:           p.Area,
		Division:       p.Division,
		Family:         p.Family,
		Category:       p.Category,
		ProductGroup:   p.ProductGroup,
		NormalPrice:    p.NormalPrice.Fixed2(),
		PromoType:      p.PromoType,
		PromoStartDate: odataDatePtr(p.PromoStartDate),
		PromoEndDate:   odataDatePtr(p.PromoEndDate),
		Observations:   p.Observations,
		LiquidContent:  p.LiquidContent,
		LiquidUnit:     unit,
		CollectedDate:  odataDatePtr(p.CollectedDate),
	}
	if rec.SyncKey == "" {
		rec.SyncKey = p.ID
	}
	if p.PromoPrice.IsPositive() {
		s := p.PromoPrice.Fixed2()
		rec.PromoPrice = &s
	}

	changed := now
	if !p.CollectedDate.IsZero() {
		changed = p.CollectedDate.Time
	}
	rec.CollectedTime = ODataTime(changed)
	rec.LastChangedAt = ODataDate(changed)
	return rec
}

// ODataDate renders t in the OData v2 JSON date form /Date(<ms>)/.
func ODataDate(t time.Time) string {
	return fmt.Sprintf("/Date(%d)/", t.UnixMilli())
}

// ODataTime renders the time of day of t, in UTC and whole seconds, as an
// Edm.Time duration.
func ODataTime(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("PT%02dH%02dM%02dS", t.Hour(), t.Minute(), t.Second())
}

func odataDatePtr(d DateTime) *string {
	if d.IsZero() {
		return nil
	}
	s := ODataDate(d.Time)
	return &s
}

// Outcome is the backend's verdict on one uploaded record.
type Outcome struct {
	Index   int    `json:"index"`
	SyncKey string `json:"sync_key"`
	OK      bool   `json:"ok"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// BatchResult tallies an upload batch. Outcomes is aligned with the
// submitted records.
type BatchResult struct {
	Success  int       `json:"success"`
	Failed   int       `json:"failed"`
	Total    int       `json:"total"`
	Errors   []string  `json:"errors,omitempty"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// NewBatchResult tallies outcomes aligned with the submitted records.
func NewBatchResult(outcomes []Outcome) *BatchResult {
	r := &BatchResult{Total: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.OK {
			r.Success++
			continue
		}
		r.Failed++
		msg := o.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", o.Status)
		}
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", o.SyncKey, msg))
	}
	return r
}

// Succeeded returns, per submitted record, whether it was accepted.
func (r *BatchResult) Succeeded() []bool {
	ok := make([]bool, len(r.Outcomes))
	for i, o := range r.Outcomes {
		ok[i] = o.OK
	}
	return ok
}
