package cliui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/shopstream/pkg/chat"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	priceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("237")).Padding(0, 1)
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const (
	minCardWidth = 24
	defaultWidth = 80
	ellipsis     = "…"

	// cardChrome is the border plus padding columns around a card.
	cardChrome = 4
)

// FormatPrice renders a price with two decimals, e.g. "$12.50".
func FormatPrice(p float64) string {
	return "$" + strconv.FormatFloat(p, 'f', 2, 64)
}

// RenderAnswer renders the assistant's answer text.
func RenderAnswer(answer string) string {
	return answerStyle.Render(answer)
}

// RenderProduct renders one product as a bordered card no wider than width.
func RenderProduct(p chat.Product, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	inner := max(width-cardChrome, minCardWidth)

	head := titleStyle.Render(ansi.Truncate(p.Title, inner-len(FormatPrice(p.Price))-1, ellipsis)) +
		" " + priceStyle.Render(FormatPrice(p.Price))

	lines := []string{head}

	var meta []string
	if !p.ID.IsZero() {
		meta = append(meta, "#"+p.ID.String())
	}
	if p.Category != "" {
		meta = append(meta, p.Category)
	}
	if len(meta) > 0 {
		lines = append(lines, DimStyle.Render(strings.Join(meta, " · ")))
	}

	if p.Description != "" {
		desc := strings.Join(strings.Fields(p.Description), " ")
		lines = append(lines, ansi.Truncate(desc, inner, ellipsis))
	}

	return cardStyle.Width(inner + 2).Render(strings.Join(lines, "\n"))
}

// RenderProducts renders a list of product cards, one per line.
func RenderProducts(products []chat.Product, width int) string {
	cards := make([]string, 0, len(products))
	for _, p := range products {
		cards = append(cards, RenderProduct(p, width))
	}
	return strings.Join(cards, "\n")
}

// RenderRecordError renders a per-record failure with its position in the
// stream and a truncated copy of the offending record.
func RenderRecordError(seq int, reason, raw string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	line := fmt.Sprintf("%s record %d: %s", WarnMark, seq, errorStyle.Render(reason))
	if raw == "" {
		return line
	}
	raw = strings.ReplaceAll(raw, "\n", `\n`)
	return line + "\n    " + DimStyle.Render(ansi.Truncate(raw, width-4, ellipsis))
}

// RenderMessage renders an answer followed by its product cards.
func RenderMessage(msg chat.Message, width int) string {
	parts := make([]string, 0, 2)
	if msg.Answer != "" {
		parts = append(parts, RenderAnswer(msg.Answer))
	}
	if len(msg.Results) > 0 {
		parts = append(parts, RenderProducts(msg.Results, width))
	}
	return strings.Join(parts, "\n")
}
