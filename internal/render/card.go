// Package render draws a card presentation as terminal text.
package render

import (
	"fmt"
	"strings"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/expansion"
	"github.com/berfenger/meshcard/internal/core/viewmodel"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const (
	DEFAULT_WIDTH = 44
	MIN_WIDTH     = 30

	labelWidth = 9
	valueWidth = 7
)

const (
	ColorBorder    = lipgloss.Color("#3A3A4A")
	ColorTitle     = lipgloss.Color("#FFFFFF")
	ColorSecondary = lipgloss.Color("#A0A0B8")
	ColorMuted     = lipgloss.Color("#6B6B80")
	ColorPowered   = lipgloss.Color("#FFD600")
	ColorTrack     = "#2A2A35"
)

var (
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorTitle).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	PoweredStyle = lipgloss.NewStyle().
			Foreground(ColorPowered)
)

// Card renders p inside a rounded box of the given outer width.
func Card(p expansion.Presentation, width int) string {
	if width <= 0 {
		width = DEFAULT_WIDTH
	}
	if width < MIN_WIDTH {
		width = MIN_WIDTH
	}
	// border and padding take two columns on each side
	lineWidth := width - 4
	s := p.Snapshot

	var lines []string
	lines = append(lines, spread(TitleStyle.Render(title(s)), MutedStyle.Render("up "+s.Uptime), lineWidth))
	if sub := subtitle(s); sub != "" {
		lines = append(lines, MutedStyle.Render(sub))
	}
	lines = append(lines, "")
	for _, bar := range s.Bars() {
		lines = append(lines, barLine(bar, lineWidth))
	}
	lines = append(lines, spread(LabelStyle.Render("Voltage"), s.Voltage.Text, lineWidth))
	lines = append(lines, "")
	lines = append(lines, trafficLines(s.Traffic, lineWidth)...)
	lines = append(lines, "")
	lines = append(lines, spread(
		LabelStyle.Render(fmt.Sprintf("Online nodes %d/%d", s.Peers.Online, s.Peers.Total)),
		chevron(p.Chevron),
		lineWidth,
	))
	for _, row := range p.Rows {
		if row.Placeholder {
			lines = append(lines, MutedStyle.Render("  "+row.Name))
			continue
		}
		lines = append(lines, spread("  "+truncate(row.Name, lineWidth-lipgloss.Width(row.Ago)-3), MutedStyle.Render(row.Ago), lineWidth))
	}

	return CardStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func title(s domain.ViewSnapshot) string {
	switch {
	case s.ShortName != "" && s.LongName != "":
		return s.ShortName + " | " + s.LongName
	case s.ShortName != "":
		return s.ShortName
	case s.LongName != "":
		return s.LongName
	}
	return s.DeviceId
}

func subtitle(s domain.ViewSnapshot) string {
	parts := []string{}
	if s.Model != "" {
		parts = append(parts, s.Model)
	}
	if s.SwVersion != "" {
		parts = append(parts, "v"+s.SwVersion)
	}
	return strings.Join(parts, " · ")
}

func barLine(bar domain.Bar, lineWidth int) string {
	text := bar.Text
	if bar.ShowPowered && bar.Powered {
		text = PoweredStyle.Render("⚡") + text
	}
	barWidth := lineWidth - labelWidth - valueWidth - 2
	if barWidth < 4 {
		barWidth = 4
	}
	p := progress.New(
		progress.WithSolidFill(bar.Color),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	p.EmptyColor = ColorTrack
	label := LabelStyle.Width(labelWidth).Render(bar.Label)
	value := lipgloss.NewStyle().Width(valueWidth).Align(lipgloss.Right).Render(text)
	return label + " " + p.ViewAs(bar.Fill/100) + " " + value
}

func trafficLines(t domain.Traffic, lineWidth int) []string {
	cell := func(label string, value float64) string {
		return LabelStyle.Render(label) + " " + viewmodel.FormatNumber(value)
	}
	half := lineWidth / 2
	row := func(a, b string) string {
		return lipgloss.NewStyle().Width(half).Render(a) + b
	}
	return []string{
		row(cell("Sent", t.Sent), cell("Received", t.Received)),
		row(cell("Relayed", t.Relayed), cell("Canceled", t.Canceled)),
		row(cell("Duplicate", t.Duplicate), cell("Malformed", t.Malformed)),
	}
}

func chevron(c string) string {
	if c == expansion.CHEVRON_UP {
		return "▲"
	}
	return "▼"
}

// spread puts left and right on one line, right aligned to lineWidth.
func spread(left, right string, lineWidth int) string {
	padding := 1
	if w := lineWidth - lipgloss.Width(left) - lipgloss.Width(right); w > padding {
		padding = w
	}
	return left + strings.Repeat(" ", padding) + right
}

func truncate(s string, max int) string {
	if max <= 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
