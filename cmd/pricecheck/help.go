package main

import (
	"text/template"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const (
	groupCollect   = "collect"
	groupCatalogue = "catalogue"
	groupData      = "data"
)

// commandGroups orders the root command listing by field workflow.
var commandGroups = []*cobra.Group{
	{ID: groupCollect, Title: "Collecting prices:"},
	{ID: groupCatalogue, Title: "Browsing the catalogue:"},
	{ID: groupData, Title: "Local data and sync:"},
}

var (
	helpHeaderStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	helpCmdStyle    = lipgloss.NewStyle().Foreground(colorPrimaryLight)
)

var helpTemplateFuncs = template.FuncMap{
	"header": func(s string) string { return styled(helpHeaderStyle, s) },
	"cmd":    func(s string) string { return styled(helpCmdStyle, s) },
	"muted":  func(s string) string { return styled(mutedStyle, s) },
}

// helpTemplate lists grouped subcommands under their group titles and the
// rest under "Other commands".
const helpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{header "Usage:"}}
  {{if .Runnable}}{{cmd .UseLine}}{{else}}{{cmd .CommandPath}}{{end}}{{if .HasAvailableSubCommands}} {{muted "[command]"}}{{end}}

{{end}}{{if .HasExample}}{{header "Examples:"}}
{{.Example}}

{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{range $group := .Groups}}{{header $group.Title}}
{{range $cmds}}{{if and (eq .GroupID $group.ID) .IsAvailableCommand}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{if not .AllChildCommandsHaveGroup}}{{header "Other commands:"}}
{{range $cmds}}{{if and (eq .GroupID "") .IsAvailableCommand}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{end}}{{if .HasAvailableLocalFlags}}{{header "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}{{header "Global flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}{{muted "Use"}} {{cmd (printf "%s [command] --help" .CommandPath)}} {{muted "for details on a command."}}
{{end}}`

// initHelp installs the styled help template on cmd and its subcommands.
// It runs from main once every command is registered.
func initHelp(cmd *cobra.Command) {
	for name, fn := range helpTemplateFuncs {
		cobra.AddTemplateFunc(name, fn)
	}
	var apply func(*cobra.Command)
	apply = func(c *cobra.Command) {
		c.SetHelpTemplate(helpTemplate)
		for _, sub := range c.Commands() {
			apply(sub)
		}
	}
	apply(cmd)
}
