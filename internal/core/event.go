package core

import (
	"fmt"
	"strings"
)

// Event is a transport-agnostic inbound message.
type Event struct {
	Tenant TenantID
	User   UserRef
	TS     int64
	Body   EventBody
}

// EventBody is the union of inbound message kinds. Summary renders the
// structured form fed to the intent classifier and the message trail.
type EventBody interface {
	Summary() string
}

type TextBody struct {
	Text string
}

func (b TextBody) Summary() string { return b.Text }

type ButtonBody struct {
	ID    string
	Title string
}

func (b ButtonBody) Summary() string {
	return fmt.Sprintf("[Button clicked: %s (ID: %s)]", b.Title, b.ID)
}

type ListSelBody struct {
	ID          string
	Title       string
	Description string
}

func (b ListSelBody) Summary() string {
	return fmt.Sprintf("[List selection: %s (ID: %s)]", b.Title, b.ID)
}

type LocationBody struct {
	Lat     float64
	Lng     float64
	Name    string
	Address string
}

func (b LocationBody) Summary() string {
	return fmt.Sprintf("[Location shared: %s at (%f,%f) – %s]", b.Name, b.Lat, b.Lng, b.Address)
}

// SharedContact is one contact card forwarded by the customer.
type SharedContact struct {
	Name      string   `json:"name"`
	Phones    []string `json:"phones,omitempty"`
	Emails    []string `json:"emails,omitempty"`
	Org       string   `json:"org,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

type ContactsBody struct {
	Contacts []SharedContact
}

func (b ContactsBody) Summary() string {
	names := make([]string, 0, len(b.Contacts))
	for _, c := range b.Contacts {
		names = append(names, c.Name)
	}
	return fmt.Sprintf("[Contact(s) shared: %s]", strings.Join(names, ", "))
}
