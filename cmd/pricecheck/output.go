package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/pricecheck"
	pcsync "github.com/hyperengineering/pricecheck/internal/sync"
	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to stderr, ensuring no credentials are leaked.
func outputError(w io.Writer, err error) {
	printError(w, "Error: %s", scrubSensitiveData(err.Error()))
}

// scrubSensitiveData removes configured credentials from error messages.
func scrubSensitiveData(msg string) string {
	if cfgAPIKey != "" && strings.Contains(msg, cfgAPIKey) {
		msg = strings.ReplaceAll(msg, cfgAPIKey, "[REDACTED]")
	}
	return msg
}

// productLine renders the one-line summary used in lists.
func productLine(p *pricecheck.Product) string {
	price := "-"
	if p.NormalPrice.Valid {
		price = p.NormalPrice.Fixed2()
	}
	if p.PromoPrice.IsPositive() {
		price += " (promo " + p.PromoPrice.Fixed2() + ")"
	}
	ean := p.EAN
	if ean == "" {
		ean = "no EAN"
	}
	return fmt.Sprintf("%-40s %-13s %s", p.MaterialDescription, ean, styled(priceStyle, price))
}

// outputProduct prints a single product under a heading.
func outputProduct(cmd *cobra.Command, heading string, p *pricecheck.Product) error {
	if outputJSON {
		return outputAsJSON(cmd, p)
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "%s", heading)
	printField(out, "Sync key", p.SyncKey)
	printField(out, "Product", p.MaterialDescription)
	if p.EAN != "" {
		printField(out, "EAN", p.EAN)
	}
	if p.Brand != "" {
		printField(out, "Brand", p.Brand)
	}
	printField(out, "Hierarchy", describePath(p))
	if p.NormalPrice.Valid {
		printField(out, "Price", styled(priceStyle, p.NormalPrice.Fixed2())+" "+p.Currency)
	}
	if p.PromoPrice.IsPositive() {
		printField(out, "Promo", p.PromoPrice.Fixed2()+" "+p.PromoType)
	}
	if p.IsCollected {
		printField(out, "Collected", p.CollectedDate.Local().Format(time.RFC3339))
	}
	if p.PendingClassification() {
		printWarning(out, "Classification pending: set the hierarchy when collecting the price")
	}
	return nil
}

// describePath renders a product's hierarchy with texts where known.
func describePath(p *pricecheck.Product) string {
	texts := p.Texts()
	parts := make([]string, 0, pricecheck.NumLevels)
	for _, l := range pricecheck.Levels() {
		k := p.Path().Get(l)
		switch {
		case k.IsPending():
			parts = append(parts, "?")
		case texts[l] != "":
			parts = append(parts, texts[l])
		default:
			parts = append(parts, k.Value())
		}
	}
	return strings.Join(parts, " > ")
}

// outputProducts prints a product list.
func outputProducts(cmd *cobra.Command, products []*pricecheck.Product, empty string) error {
	if outputJSON {
		if products == nil {
			products = []*pricecheck.Product{}
		}
		return outputAsJSON(cmd, products)
	}

	out := cmd.OutOrStdout()
	if len(products) == 0 {
		printMuted(out, "%s", empty)
		return nil
	}
	for _, p := range products {
		fmt.Fprintln(out, productLine(p))
		printMuted(out, "  %s", p.SyncKey)
	}
	fmt.Fprintln(out)
	printInfo(out, "%d products", len(products))
	return nil
}

// outputStats prints store statistics.
func outputStats(cmd *cobra.Command, profile string, stats *pricecheck.StoreStats) error {
	if outputJSON {
		return outputAsJSON(cmd, stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile:        %s\n", profile)
	fmt.Fprintf(out, "Documents:      %d\n", stats.DocumentCount)
	fmt.Fprintf(out, "Pending upload: %d\n", stats.PendingSync)
	fmt.Fprintf(out, "Schema version: %s\n", stats.SchemaVersion)
	if stats.LastSync.IsZero() {
		fmt.Fprintln(out, "Last sync:      never")
	} else {
		fmt.Fprintf(out, "Last sync:      %s (%s ago)\n",
			stats.LastSync.Local().Format(time.RFC3339),
			time.Since(stats.LastSync).Round(time.Minute))
	}

	names := make([]string, 0, len(stats.ByEntity))
	for e := range stats.ByEntity {
		names = append(names, string(e))
	}
	sort.Strings(names)
	for _, n := range names {
		printMuted(out, "  %-20s %d", n, stats.ByEntity[pricecheck.EntityName(n)])
	}
	return nil
}

// syncReportMarkdown renders a sync report for display.
func syncReportMarkdown(r *pcsync.Report, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Sync complete\n\n")
	fmt.Fprintf(&b, "Took %s.\n\n", elapsed.Round(time.Millisecond))

	fmt.Fprintf(&b, "### Upload\n\n")
	if r.Upload == nil || r.Upload.Total == 0 {
		fmt.Fprintf(&b, "No collected prices were pending.\n\n")
	} else {
		fmt.Fprintf(&b, "- **%d** of %d collected prices accepted\n", r.Upload.Success, r.Upload.Total)
		if r.Upload.Failed > 0 {
			fmt.Fprintf(&b, "- **%d** failed and were discarded\n", r.Upload.Failed)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "### Download\n\n")
	fmt.Fprintf(&b, "| Set | Fetched | Stored |\n|---|---:|---:|\n")
	for _, d := range r.Downloads {
		fmt.Fprintf(&b, "| %s | %d | %d |\n", d.Entity, d.Fetched, d.Stored)
	}
	if rejected := r.Rejected(); len(rejected) > 0 {
		fmt.Fprintf(&b, "\n%d records were rejected by the local store:\n\n", len(rejected))
		for _, rj := range rejected {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", rj.ID, rj.Entity, rj.Error)
		}
	}
	return b.String()
}
