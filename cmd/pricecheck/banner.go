package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerDimStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	bannerTagStyle     = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
	bannerVersionStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderBanner draws a shelf label.
func renderBanner() string {
	edge := bannerDimStyle.Render("+" + strings.Repeat("-", 20) + "+")
	side := bannerDimStyle.Render("|")
	tag := bannerTagStyle.Render("€")
	title := bannerTitleStyle.Render("PRICECHECK")

	lines := []string{
		edge,
		side + "  " + tag + "  " + title + strings.Repeat(" ", 5) + side,
		edge,
	}
	return strings.Join(lines, "\n")
}

func renderBannerWithTagline() string {
	tagline := bannerTaglineStyle.Render("  every shelf, every price")
	ver := bannerVersionStyle.Render("  " + version)
	return strings.Join([]string{renderBanner(), tagline, ver}, "\n")
}
