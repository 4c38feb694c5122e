// Package intent classifies a user message into a coarse intent. The
// classifier is pure: no network, no clock, same input same output.
package intent

import (
	"strconv"
	"strings"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

type Kind string

const (
	KindBinary         Kind = "binary"
	KindConfirmation   Kind = "confirmation"
	KindChoice         Kind = "choice"
	KindList           Kind = "list"
	KindLocation       Kind = "location"
	KindButton         Kind = "button"
	KindListSel        Kind = "listSel"
	KindLocationShared Kind = "locationShared"
	KindNone           Kind = "none"
)

// Intent is the classification result. ID is set for button and list
// selections; the coordinates for shared locations.
type Intent struct {
	Kind    Kind
	ID      string
	Title   string
	Lat     float64
	Lng     float64
	Address string
}

// String renders the tag form used in the conversation record.
func (i Intent) String() string {
	switch i.Kind {
	case KindButton, KindListSel:
		return string(i.Kind) + ":" + i.ID
	default:
		return string(i.Kind)
	}
}

const (
	buttonPrefix   = "[Button clicked: "
	listSelPrefix  = "[List selection: "
	locationPrefix = "[Location shared: "
	contactsPrefix = "[Contact(s) shared: "
)

// Classify maps a message summary to an intent. Structured event summaries
// win over keyword matches; keyword tables come from the tenant config.
func Classify(summary string, kw core.KeywordSets) Intent {
	s := strings.TrimSpace(summary)

	switch {
	case strings.HasPrefix(s, buttonPrefix):
		title, id := parseTitleID(strings.TrimPrefix(s, buttonPrefix))
		return Intent{Kind: KindButton, ID: id, Title: title}
	case strings.HasPrefix(s, listSelPrefix):
		title, id := parseTitleID(strings.TrimPrefix(s, listSelPrefix))
		return Intent{Kind: KindListSel, ID: id, Title: title}
	case strings.HasPrefix(s, locationPrefix):
		if in, ok := parseLocation(strings.TrimPrefix(s, locationPrefix)); ok {
			return in
		}
		return Intent{Kind: KindNone}
	case strings.HasPrefix(s, contactsPrefix):
		return Intent{Kind: KindNone}
	}

	lower := strings.ToLower(s)
	switch {
	case containsAny(lower, kw.Binary):
		return Intent{Kind: KindBinary}
	case containsAny(lower, kw.Confirmation):
		return Intent{Kind: KindConfirmation}
	case containsAny(lower, kw.List):
		return Intent{Kind: KindList}
	case containsAny(lower, kw.Location):
		return Intent{Kind: KindLocation}
	case isBareNumber(lower):
		return Intent{Kind: KindChoice, ID: lower}
	}
	return Intent{Kind: KindNone}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// isBareNumber reports whether the message is a plain option number.
func isBareNumber(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// parseTitleID splits "<title> (ID: <id>)]" keeping the id verbatim. The id
// is the segment after the LAST "(ID: " marker so titles containing the
// marker still parse.
func parseTitleID(rest string) (title, id string) {
	rest = strings.TrimSuffix(rest, "]")
	idx := strings.LastIndex(rest, "(ID: ")
	if idx < 0 {
		return strings.TrimSpace(rest), ""
	}
	title = strings.TrimSpace(rest[:idx])
	id = strings.TrimSuffix(rest[idx+len("(ID: "):], ")")
	return title, id
}

// parseLocation splits "<name> at (<lat>,<lng>) – <addr>]".
func parseLocation(rest string) (Intent, bool) {
	rest = strings.TrimSuffix(rest, "]")

	open := strings.LastIndex(rest, "(")
	if open < 0 {
		return Intent{}, false
	}
	closeIdx := strings.Index(rest[open:], ")")
	if closeIdx < 0 {
		return Intent{}, false
	}
	closeIdx += open

	coords := strings.SplitN(rest[open+1:closeIdx], ",", 2)
	if len(coords) != 2 {
		return Intent{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
	if err1 != nil || err2 != nil {
		return Intent{}, false
	}

	addr := ""
	if sep := strings.Index(rest[closeIdx:], "– "); sep >= 0 {
		addr = strings.TrimSpace(rest[closeIdx+sep+len("– "):])
	}
	return Intent{Kind: KindLocationShared, Lat: lat, Lng: lng, Address: addr}, true
}

// FromEvent classifies a typed event body without going through the summary
// string, avoiding a parse round-trip for structured events.
func FromEvent(body core.EventBody, kw core.KeywordSets) Intent {
	switch b := body.(type) {
	case core.ButtonBody:
		return Intent{Kind: KindButton, ID: b.ID, Title: b.Title}
	case core.ListSelBody:
		return Intent{Kind: KindListSel, ID: b.ID, Title: b.Title}
	case core.LocationBody:
		return Intent{Kind: KindLocationShared, Lat: b.Lat, Lng: b.Lng, Address: b.Address}
	case core.TextBody:
		return Classify(b.Text, kw)
	default:
		return Intent{Kind: KindNone}
	}
}
