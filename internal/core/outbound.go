package core

// OutboundMessage is one typed payload of an OutboundPlan. The composer
// validates instances against the WhatsApp Cloud API limits before they are
// handed to the transport.
type OutboundMessage interface {
	isOutbound()
}

// OutboundPlan is the ordered sequence of payloads a single FSM step emits.
type OutboundPlan []OutboundMessage

type TextOut struct {
	Text string `json:"text"`
}

// Button is one quick-reply button. The id is opaque to the renderer but
// meaningful to the engine (e.g. "confirm", "add_product_<id>").
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ButtonsOut struct {
	Body    string   `json:"body"`
	Header  string   `json:"header,omitempty"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
}

type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

type ListOut struct {
	Body       string        `json:"body"`
	Header     string        `json:"header,omitempty"`
	Footer     string        `json:"footer,omitempty"`
	ActionText string        `json:"actionText"`
	Sections   []ListSection `json:"sections"`
}

// CardHeaderType is the carousel card media kind; all cards of one carousel
// must share it.
type CardHeaderType string

const (
	CardHeaderImage CardHeaderType = "image"
	CardHeaderVideo CardHeaderType = "video"
)

type CarouselCard struct {
	Index      int            `json:"card_index"`
	HeaderType CardHeaderType `json:"headerType"`
	HeaderLink string         `json:"headerLink"`
	Body       string         `json:"body"`
	ButtonText string         `json:"buttonText"`
	ButtonURL  string         `json:"buttonUrl"`
}

type CarouselOut struct {
	Body  string         `json:"body"`
	Cards []CarouselCard `json:"cards"`
}

type LocationOut struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name,omitempty"`
	Address string  `json:"address,omitempty"`
}

type LocationRequestOut struct {
	Body string `json:"body"`
}

type ContactsOut struct {
	Contacts []SharedContact `json:"contacts"`
}

func (TextOut) isOutbound()            {}
func (ButtonsOut) isOutbound()         {}
func (ListOut) isOutbound()            {}
func (CarouselOut) isOutbound()        {}
func (LocationOut) isOutbound()        {}
func (LocationRequestOut) isOutbound() {}
func (ContactsOut) isOutbound()        {}

// PlanTexts extracts a human-readable line per payload for the conversation
// trail and store sync.
func PlanTexts(plan OutboundPlan) []string {
	out := make([]string, 0, len(plan))
	for _, m := range plan {
		switch p := m.(type) {
		case TextOut:
			out = append(out, p.Text)
		case ButtonsOut:
			out = append(out, p.Body)
		case ListOut:
			out = append(out, p.Body)
		case CarouselOut:
			out = append(out, p.Body)
		case LocationOut:
			out = append(out, p.Name)
		case LocationRequestOut:
			out = append(out, p.Body)
		case ContactsOut:
			out = append(out, "[contact card]")
		}
	}
	return out
}
