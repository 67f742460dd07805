package main

import (
	"fmt"

	"github.com/hyperengineering/pricecheck"
	"github.com/spf13/cobra"
)

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy",
	Short: "Browse the merchandise hierarchy",
	Long: `Browse the hierarchy of a competitor top-down. Each level flag narrows
the selection; the options of the next level are listed. With all five
levels set, the products filed there are listed instead.`,
	Example: `  pricecheck hierarchy --customer 12345 --assortment AS1
  pricecheck hierarchy --customer 12345 --assortment AS1 --area A01 --division D01`,
	Args: cobra.NoArgs,
	RunE: runHierarchy,
}

var competitorsCmd = &cobra.Command{
	Use:   "competitors",
	Short: "List the competitor shops of the agent",
	Args:  cobra.NoArgs,
	RunE:  runCompetitors,
}

func init() {
	addScopeFlags(hierarchyCmd)
	addPathFlags(hierarchyCmd)
	_ = hierarchyCmd.MarkFlagRequired("customer")
	_ = hierarchyCmd.MarkFlagRequired("assortment")
}

// hierarchyListing is the JSON shape of a hierarchy browse.
type hierarchyListing struct {
	Path     [pricecheck.NumLevels]string `json:"path"`
	Level    string                       `json:"level,omitempty"`
	Options  []pricecheck.HierarchyNode   `json:"options,omitempty"`
	Products []*pricecheck.Product        `json:"products,omitempty"`
}

func runHierarchy(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	scope := scopeFromFlags()
	sel, err := client.Hierarchy().NewSelection(scope)
	if err != nil {
		return err
	}

	path, _ := pathFromFlags(cmd)
	next := pricecheck.LevelArea
	for _, l := range pricecheck.Levels() {
		k := path.Get(l)
		if !k.IsAssigned() {
			break
		}
		if err := sel.Select(l, k.Value()); err != nil {
			return err
		}
		next = l + 1
	}

	listing := hierarchyListing{Path: sel.Path().Encoded()}
	if next.IsValid() {
		listing.Level = next.String()
		listing.Options = sel.Options(next)
	} else {
		products, err := client.Catalog().ProductsIn(scope, sel.Path())
		if err != nil {
			return err
		}
		listing.Products = products
	}

	if outputJSON {
		return outputAsJSON(cmd, listing)
	}
	if !next.IsValid() {
		return outputProducts(cmd, listing.Products, "No products filed under this hierarchy.")
	}

	out := cmd.OutOrStdout()
	if len(listing.Options) == 0 {
		printMuted(out, "No %s options.", listing.Level)
		return nil
	}
	printInfo(out, "%s options:", listing.Level)
	for _, n := range listing.Options {
		fmt.Fprintf(out, "  %-12s %s\n", n.Key, n.Text)
	}
	printMuted(out, "Narrow with --%s <key>", pathFlagNames[next])
	return nil
}

func runCompetitors(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	shops, err := client.Repository().CompetitorShops()
	if err != nil {
		return err
	}
	if outputJSON {
		if shops == nil {
			shops = []pricecheck.CompetitorShop{}
		}
		return outputAsJSON(cmd, shops)
	}

	out := cmd.OutOrStdout()
	if len(shops) == 0 {
		printMuted(out, "No competitor shops. Run 'pricecheck sync' to download them.")
		return nil
	}
	if card, err := client.Repository().UserCard(); err == nil && card != nil {
		printInfo(out, "Agent: %s", card.FullName)
	}
	for _, s := range shops {
		fmt.Fprintf(out, "  %-10s %-6s %s\n", s.Customer, s.Assortment, s.Name)
	}
	return nil
}
