package main

import (
	"github.com/hyperengineering/pricecheck"
	"github.com/spf13/cobra"
)

var (
	scopeCustomer   string
	scopeAssortment string

	pathKeys [pricecheck.NumLevels]string
)

var pathFlagNames = [pricecheck.NumLevels]string{"area", "division", "family", "category", "group"}

// addScopeFlags registers --customer and --assortment on cmd.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scopeCustomer, "customer", "", "Competitor customer number")
	cmd.Flags().StringVar(&scopeAssortment, "assortment", "", "Assortment code")
}

// addPathFlags registers one flag per hierarchy level on cmd.
func addPathFlags(cmd *cobra.Command) {
	for l, name := range pathFlagNames {
		cmd.Flags().StringVar(&pathKeys[l], name, "", pricecheck.Level(l).String()+" key")
	}
}

func scopeFromFlags() pricecheck.Scope {
	return pricecheck.Scope{Customer: scopeCustomer, Assortment: scopeAssortment}
}

// pathFromFlags returns the hierarchy given on the command line and
// whether any level was set.
func pathFromFlags(cmd *cobra.Command) (pricecheck.Path, bool) {
	var path pricecheck.Path
	set := false
	for l, name := range pathFlagNames {
		if cmd.Flags().Changed(name) {
			path[l] = pricecheck.Assigned(pathKeys[l])
			set = true
		}
	}
	return path, set
}
