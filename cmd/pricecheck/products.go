package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/pricecheck"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <ean>",
	Short: "Look up or create a product by barcode",
	Long: `Look up a product of the competitor by its 13-digit EAN, creating it
when the competitor has no product with that barcode.`,
	Example: `  pricecheck scan 5601234567890 --customer 12345 --assortment AS1
  pricecheck scan 5601234567890 --customer 12345 --assortment AS1 --area A01 --division D01`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a product without a barcode",
	Example: `  pricecheck create --customer 12345 --assortment AS1
  pricecheck create --customer 12345 --assortment AS1 --area A01 --division D01 --family F01 --category C01 --group G01`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the competitor's products",
	Long:  `Search products by description, EAN, brand or code. Without a query every product of the competitor is listed.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List collected prices awaiting upload",
	Args:  cobra.NoArgs,
	RunE:  runPending,
}

func init() {
	for _, cmd := range []*cobra.Command{scanCmd, createCmd} {
		addScopeFlags(cmd)
		addPathFlags(cmd)
		_ = cmd.MarkFlagRequired("customer")
		_ = cmd.MarkFlagRequired("assortment")
	}
	addScopeFlags(searchCmd)
}

// collectContext builds the creation context. Hierarchy flags count as
// browsing the hierarchy.
func collectContext(cmd *cobra.Command) pricecheck.CollectContext {
	path, browsed := pathFromFlags(cmd)
	return pricecheck.CollectContext{Scope: scopeFromFlags(), Path: path, FromHierarchy: browsed}
}

func runScan(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	p, created, err := client.Catalog().ProcessBarcode(context.Background(), args[0], collectContext(cmd))
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if created {
		return outputProduct(cmd, "Product created", p)
	}
	return outputProduct(cmd, "Product found", p)
}

func runCreate(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := client.Catalog().CreateManual(context.Background(), collectContext(cmd))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return outputProduct(cmd, "Product created", p)
}

func runSearch(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	query := ""
	if len(args) > 0 {
		query = args[0]
	}
	products, err := client.Catalog().Search(scopeFromFlags(), query)
	if err != nil {
		return err
	}
	return outputProducts(cmd, products, "No matching products.")
}

func runPending(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	products, err := client.Catalog().CollectedPrices()
	if err != nil {
		return err
	}
	return outputProducts(cmd, products, "No collected prices pending upload.")
}
