package whatsapp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// Cloud API limits. Cardinality violations are errors; string overruns are
// truncated on a word boundary with an ellipsis.
const (
	maxButtons        = 3
	maxButtonTitle    = 20
	maxListRows       = 10
	maxListRowTitle   = 24
	maxListRowDesc    = 72
	maxListActionText = 20
	maxBody           = 1024
	maxHeader         = 60
	maxFooter         = 60
	minCarouselCards  = 2
	maxCarouselCards  = 10
	maxCardBody       = 160
	maxCardButtonText = 20
)

// truncate shortens s to at most limit runes, breaking at the last space
// inside the window when one exists and appending an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := runes[:limit-1]
	if idx := lastSpace(cut); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(string(cut), " ") + "…"
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

// ComposeButtons validates a quick-reply button payload.
func ComposeButtons(m core.ButtonsOut) (core.ButtonsOut, error) {
	if m.Body == "" {
		return m, &core.ComposeError{Kind: "buttons", Reason: "empty body"}
	}
	if len(m.Buttons) == 0 {
		return m, &core.ComposeError{Kind: "buttons", Reason: "no buttons"}
	}
	if len(m.Buttons) > maxButtons {
		return m, &core.ComposeError{Kind: "buttons", Reason: fmt.Sprintf("%d buttons exceeds limit of %d", len(m.Buttons), maxButtons)}
	}
	m.Body = truncate(m.Body, maxBody)
	m.Header = truncate(m.Header, maxHeader)
	m.Footer = truncate(m.Footer, maxFooter)
	buttons := make([]core.Button, len(m.Buttons))
	for i, b := range m.Buttons {
		if b.ID == "" {
			return m, &core.ComposeError{Kind: "buttons", Reason: fmt.Sprintf("button %d has empty id", i)}
		}
		b.Title = truncate(b.Title, maxButtonTitle)
		buttons[i] = b
	}
	m.Buttons = buttons
	return m, nil
}

// ComposeList validates an interactive list payload. The row limit is a
// total across all sections.
func ComposeList(m core.ListOut) (core.ListOut, error) {
	if m.Body == "" {
		return m, &core.ComposeError{Kind: "list", Reason: "empty body"}
	}
	total := 0
	for _, s := range m.Sections {
		total += len(s.Rows)
	}
	if total == 0 {
		return m, &core.ComposeError{Kind: "list", Reason: "no rows"}
	}
	if total > maxListRows {
		return m, &core.ComposeError{Kind: "list", Reason: fmt.Sprintf("%d rows exceeds limit of %d", total, maxListRows)}
	}
	m.Body = truncate(m.Body, maxBody)
	m.Header = truncate(m.Header, maxHeader)
	m.Footer = truncate(m.Footer, maxFooter)
	m.ActionText = truncate(m.ActionText, maxListActionText)
	sections := make([]core.ListSection, len(m.Sections))
	for i, s := range m.Sections {
		rows := make([]core.ListRow, len(s.Rows))
		for j, r := range s.Rows {
			if r.ID == "" {
				return m, &core.ComposeError{Kind: "list", Reason: fmt.Sprintf("row %d in section %d has empty id", j, i)}
			}
			r.Title = truncate(r.Title, maxListRowTitle)
			r.Description = truncate(r.Description, maxListRowDesc)
			rows[j] = r
		}
		s.Rows = rows
		sections[i] = s
	}
	m.Sections = sections
	return m, nil
}

// ComposeCarousel validates a carousel payload: 2 to 10 cards, one shared
// header type, card bodies within the card body limit.
func ComposeCarousel(m core.CarouselOut) (core.CarouselOut, error) {
	if len(m.Cards) < minCarouselCards || len(m.Cards) > maxCarouselCards {
		return m, &core.ComposeError{Kind: "carousel", Reason: fmt.Sprintf("%d cards outside %d..%d", len(m.Cards), minCarouselCards, maxCarouselCards)}
	}
	headerType := m.Cards[0].HeaderType
	if headerType != core.CardHeaderImage && headerType != core.CardHeaderVideo {
		return m, &core.ComposeError{Kind: "carousel", Reason: fmt.Sprintf("unknown header type %q", headerType)}
	}
	m.Body = truncate(m.Body, maxBody)
	cards := make([]core.CarouselCard, len(m.Cards))
	for i, card := range m.Cards {
		if card.HeaderType != headerType {
			return m, &core.ComposeError{Kind: "carousel", Reason: "cards mix header types"}
		}
		if card.HeaderLink == "" {
			return m, &core.ComposeError{Kind: "carousel", Reason: fmt.Sprintf("card %d has no header link", i)}
		}
		card.Index = i
		card.Body = truncate(card.Body, maxCardBody)
		card.ButtonText = truncate(card.ButtonText, maxCardButtonText)
		cards[i] = card
	}
	m.Cards = cards
	return m, nil
}

// SplitCarouselByHeader partitions cards by header type so each group
// satisfies the shared-header rule. Groups smaller than the card minimum
// cannot form a carousel and are returned separately for downgrade.
func SplitCarouselByHeader(m core.CarouselOut) (carousels []core.CarouselOut, leftovers []core.CarouselCard) {
	byType := map[core.CardHeaderType][]core.CarouselCard{}
	var order []core.CardHeaderType
	for _, card := range m.Cards {
		if _, seen := byType[card.HeaderType]; !seen {
			order = append(order, card.HeaderType)
		}
		byType[card.HeaderType] = append(byType[card.HeaderType], card)
	}
	for _, t := range order {
		group := byType[t]
		if len(group) < minCarouselCards {
			leftovers = append(leftovers, group...)
			continue
		}
		for len(group) > maxCarouselCards {
			carousels = append(carousels, core.CarouselOut{Body: m.Body, Cards: group[:maxCarouselCards]})
			group = group[maxCarouselCards:]
		}
		if len(group) >= minCarouselCards {
			carousels = append(carousels, core.CarouselOut{Body: m.Body, Cards: group})
		} else {
			leftovers = append(leftovers, group...)
		}
	}
	return carousels, leftovers
}

// Compose validates and normalizes any outbound payload. Payload kinds
// without limits pass through unchanged.
func Compose(msg core.OutboundMessage) (core.OutboundMessage, error) {
	switch m := msg.(type) {
	case core.ButtonsOut:
		return ComposeButtons(m)
	case core.ListOut:
		return ComposeList(m)
	case core.CarouselOut:
		return ComposeCarousel(m)
	case core.TextOut:
		m.Text = truncate(m.Text, maxBody*4)
		return m, nil
	case core.LocationRequestOut:
		m.Body = truncate(m.Body, maxBody)
		return m, nil
	default:
		return msg, nil
	}
}
