package core

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// TenantID identifies a business tenant (opaque, e.g. "my-restaurant").
type TenantID string

// BranchID identifies a tenant branch/local (e.g. "LOC123").
type BranchID string

// UserRef is the customer phone number in E.164 form.
type UserRef string

// SessionID is assigned by the conversation backend on first contact.
type SessionID string

// CartItemID identifies a single cart line.
type CartItemID string

// OrderID is assigned by the ordering backend.
type OrderID string

// IdempotencyKey is attached to order creation so transport retries cannot
// duplicate orders. The FSM rotates it only when an attempt is logically dead.
type IdempotencyKey string

// ExtraID identifies an add-on from the tenant extras price table.
type ExtraID string

func NewCartItemID() CartItemID { return CartItemID(uuid.New().String()) }

func NewIdempotencyKey() IdempotencyKey { return IdempotencyKey(uuid.New().String()) }

// phoneLax is the E.164-lax shape accepted from user input.
var phoneLax = regexp.MustCompile(`^\+?\d{7,15}$`)

// NormalizePhone strips spaces and dashes and validates E.164-lax.
func NormalizePhone(raw string) (UserRef, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	if !phoneLax.MatchString(s) {
		return "", false
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return UserRef(s), true
}

func (u UserRef) Valid() bool { return phoneLax.MatchString(string(u)) }
