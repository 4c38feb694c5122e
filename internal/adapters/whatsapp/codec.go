package whatsapp

import (
	"fmt"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

const messagingProduct = "whatsapp"

// Encode renders a validated outbound payload into its Cloud API request
// body. The payload must already have passed Compose.
func Encode(to core.UserRef, msg core.OutboundMessage) (any, error) {
	switch m := msg.(type) {
	case core.TextOut:
		return TextMessage{
			MessagingProduct: messagingProduct,
			To:               string(to),
			Type:             "text",
			Text:             textBody{Text: m.Text},
		}, nil

	case core.ButtonsOut:
		buttons := make([]ActionButton, len(m.Buttons))
		for i, b := range m.Buttons {
			buttons[i] = ActionButton{Type: "reply", Reply: ButtonReply{ID: b.ID, Title: b.Title}}
		}
		iv := Interactive{
			Type:   "button",
			Body:   textBody{Text: m.Body},
			Action: &InteractiveAction{Buttons: buttons},
		}
		if m.Header != "" {
			iv.Header = &InteractiveHeader{Type: "text", Text: m.Header}
		}
		if m.Footer != "" {
			iv.Footer = &textBody{Text: m.Footer}
		}
		return InteractiveMessage{
			MessagingProduct: messagingProduct,
			To:               string(to),
			Type:             "interactive",
			Interactive:      iv,
		}, nil

	case core.ListOut:
		sections := make([]ListSection, len(m.Sections))
		for i, s := range m.Sections {
			rows := make([]ListRow, len(s.Rows))
			for j, r := range s.Rows {
				rows[j] = ListRow{ID: r.ID, Title: r.Title, Description: r.Description}
			}
			sections[i] = ListSection{Title: s.Title, Rows: rows}
		}
		iv := Interactive{
			Type:   "list",
			Body:   textBody{Text: m.Body},
			Action: &InteractiveAction{Button: m.ActionText, Sections: sections},
		}
		if m.Header != "" {
			iv.Header = &InteractiveHeader{Type: "text", Text: m.Header}
		}
		if m.Footer != "" {
			iv.Footer = &textBody{Text: m.Footer}
		}
		return InteractiveMessage{
			MessagingProduct: messagingProduct,
			To:               string(to),
			Type:             "interactive",
			Interactive:      iv,
		}, nil

	case core.CarouselOut:
		cards := make([]CarouselCard, len(m.Cards))
		for i, c := range m.Cards {
			header := CardHeader{Type: string(c.HeaderType)}
			switch c.HeaderType {
			case core.CardHeaderImage:
				header.Image = &MediaLink{Link: c.HeaderLink}
			case core.CardHeaderVideo:
				header.Video = &MediaLink{Link: c.HeaderLink}
			default:
				return nil, &core.ComposeError{Kind: "carousel", Reason: fmt.Sprintf("unknown header type %q", c.HeaderType)}
			}
			cards[i] = CarouselCard{
				CardIndex: c.Index,
				Header:    header,
				Body:      textBody{Text: c.Body},
				Action: CardAction{Buttons: []URLButton{{
					Type: "url",
					Text: c.ButtonText,
					URL:  c.ButtonURL,
				}}},
			}
		}
		return InteractiveMessage{
			MessagingProduct: messagingProduct,
			To:               string(to),
			Type:             "interactive",
			Interactive: Interactive{
				Type:   "carousel",
				Body:   textBody{Text: m.Body},
				Action: &InteractiveAction{Cards: cards},
			},
		}, nil

	case core.LocationOut:
		return LocationMessage{
			MessagingProduct: messagingProduct,
			To:               string(to),
			Type:             "location",
			Location: Location{
				Latitude:  m.Lat,
				Longitude: m.Lng,
				Name:      m.Name,
				Address:   m.Address,
			},
		}, nil

	case core.LocationRequestOut:
		return InteractiveMessage{
			MessagingProduct: messagingProduct,
			To:               string(to),
			Type:             "interactive",
			Interactive: Interactive{
				Type:   "location_request_message",
				Body:   textBody{Text: m.Body},
				Action: &InteractiveAction{Name: "send_location"},
			},
		}, nil

	case core.ContactsOut:
		contacts := make([]Contact, len(m.Contacts))
		for i, c := range m.Contacts {
			contact := Contact{Name: ContactName{FormattedName: c.Name}}
			for _, p := range c.Phones {
				contact.Phones = append(contact.Phones, ContactPhone{Phone: p})
			}
			for _, e := range c.Emails {
				contact.Emails = append(contact.Emails, ContactEmail{Email: e})
			}
			if c.Org != "" {
				contact.Org = &ContactOrg{Company: c.Org}
			}
			for _, a := range c.Addresses {
				contact.Addresses = append(contact.Addresses, ContactAddress{Street: a})
			}
			contacts[i] = contact
		}
		return ContactsMessage{
			MessagingProduct: messagingProduct,
			To:               string(to),
			Type:             "contacts",
			Contacts:         contacts,
		}, nil

	default:
		return nil, fmt.Errorf("encode: unsupported outbound payload %T", msg)
	}
}

// ParseMessage maps one inbound webhook message to its event body. Unknown
// message types return nil; callers skip them.
func ParseMessage(msg WebhookMessage) core.EventBody {
	switch msg.Type {
	case "text":
		return core.TextBody{Text: msg.Text.Body}
	case "interactive":
		switch msg.Interactive.Type {
		case "button_reply":
			return core.ButtonBody{
				ID:    msg.Interactive.ButtonReply.ID,
				Title: msg.Interactive.ButtonReply.Title,
			}
		case "list_reply":
			return core.ListSelBody{
				ID:          msg.Interactive.ListReply.ID,
				Title:       msg.Interactive.ListReply.Title,
				Description: msg.Interactive.ListReply.Description,
			}
		}
		return nil
	case "location":
		if msg.Location == nil {
			return nil
		}
		return core.LocationBody{
			Lat:     msg.Location.Latitude,
			Lng:     msg.Location.Longitude,
			Name:    msg.Location.Name,
			Address: msg.Location.Address,
		}
	case "contacts":
		contacts := make([]core.SharedContact, 0, len(msg.Contacts))
		for _, c := range msg.Contacts {
			sc := core.SharedContact{Name: c.Name.FormattedName, Org: c.Org.Company}
			for _, p := range c.Phones {
				sc.Phones = append(sc.Phones, p.Phone)
			}
			for _, e := range c.Emails {
				sc.Emails = append(sc.Emails, e.Email)
			}
			for _, a := range c.Addresses {
				sc.Addresses = append(sc.Addresses, a.Street)
			}
			contacts = append(contacts, sc)
		}
		if len(contacts) == 0 {
			return nil
		}
		return core.ContactsBody{Contacts: contacts}
	default:
		return nil
	}
}
