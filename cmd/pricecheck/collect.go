package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/pricecheck"
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect <sync-key>",
	Short: "Record the observed price of a product",
	Long: `Record the shelf price of a product and flag it for upload.

Only the given flags change; everything else keeps the product's current
value. Products created by a scan still need all five hierarchy levels.`,
	Example: `  pricecheck collect Products_AS1_0000012345_A01_D01_F01_C01_G01_SCAN1 --price 2.49
  pricecheck collect <key> --price 3,99 --promo-price 2,99 --promo-type LEAFLET --promo-end 2026-11-01`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

var discardCmd = &cobra.Command{
	Use:   "discard <sync-key>",
	Short: "Discard the collected price of a product",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscard,
}

var (
	collectPrice       string
	collectPromoPrice  string
	collectPromoType   string
	collectPromoStart  string
	collectPromoEnd    string
	collectDescription string
	collectBrand       string
	collectEAN         string
	collectNotes       string
	collectLiquid      string
	collectLiquidUnit  string
)

func init() {
	f := collectCmd.Flags()
	f.StringVar(&collectPrice, "price", "", "Normal shelf price")
	f.StringVar(&collectPromoPrice, "promo-price", "", "Promotional price")
	f.StringVar(&collectPromoType, "promo-type", "", "Promotion type")
	f.StringVar(&collectPromoStart, "promo-start", "", "Promotion start date (YYYY-MM-DD)")
	f.StringVar(&collectPromoEnd, "promo-end", "", "Promotion end date (YYYY-MM-DD)")
	f.StringVar(&collectDescription, "description", "", "Material description")
	f.StringVar(&collectBrand, "brand", "", "Brand")
	f.StringVar(&collectEAN, "ean", "", "EAN")
	f.StringVar(&collectNotes, "notes", "", "Observations")
	f.StringVar(&collectLiquid, "liquid", "", "Liquid content")
	f.StringVar(&collectLiquidUnit, "liquid-unit", "", "Liquid content unit")
	addPathFlags(collectCmd)
}

// observationFromFlags applies the changed flags to obs.
func observationFromFlags(cmd *cobra.Command, obs pricecheck.Observation) (pricecheck.Observation, error) {
	f := cmd.Flags()
	var err error

	if f.Changed("price") {
		if obs.NormalPrice, err = pricecheck.ParsePrice(collectPrice); err != nil {
			return obs, err
		}
	}
	if f.Changed("promo-price") {
		if obs.PromoPrice, err = pricecheck.ParsePrice(collectPromoPrice); err != nil {
			return obs, err
		}
	}
	if f.Changed("promo-start") {
		if obs.PromoStartDate, err = parseDateFlag("promo-start", collectPromoStart); err != nil {
			return obs, err
		}
	}
	if f.Changed("promo-end") {
		if obs.PromoEndDate, err = parseDateFlag("promo-end", collectPromoEnd); err != nil {
			return obs, err
		}
	}

	strs := []struct {
		flag string
		dst  *string
		val  string
	}{
		{"promo-type", &obs.PromoType, collectPromoType},
		{"description", &obs.MaterialDescription, collectDescription},
		{"brand", &obs.Brand, collectBrand},
		{"ean", &obs.EAN, collectEAN},
		{"notes", &obs.Observations, collectNotes},
		{"liquid", &obs.LiquidContent, collectLiquid},
		{"liquid-unit", &obs.LiquidContentUnit, collectLiquidUnit},
	}
	for _, s := range strs {
		if f.Changed(s.flag) {
			*s.dst = s.val
		}
	}

	if path, set := pathFromFlags(cmd); set {
		for l, k := range path {
			if k.IsAssigned() {
				obs.Path[l] = k
			}
		}
	}
	return obs, nil
}

func parseDateFlag(name, v string) (pricecheck.DateTime, error) {
	if v == "" {
		return pricecheck.DateTime{}, nil
	}
	t, ok := pricecheck.ParseDateTime(v)
	if !ok {
		return pricecheck.DateTime{}, &pricecheck.ValidationError{Field: name, Message: fmt.Sprintf("invalid date %q", v)}
	}
	return pricecheck.At(t), nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := client.Repository().FindBySyncKey(args[0])
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("collect: %s: %w", args[0], pricecheck.ErrNotFound)
	}

	obs, err := observationFromFlags(cmd, pricecheck.ObservationFor(p))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	saved, err := client.Catalog().SaveObservation(ctx, p.ID, obs)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	return outputProduct(cmd, "Price collected", saved)
}

func runDiscard(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := client.Catalog().DiscardObservation(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("discard: %w", err)
	}
	return outputProduct(cmd, "Collected price discarded", p)
}
