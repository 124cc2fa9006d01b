// Package session holds the terminal's client-side state: credentials,
// the open shift, cached shop info, and the last order snapshot. It replaces
// the browser localStorage the workflow previously leaned on, behind an
// explicit read/write contract so the workflow is testable without a browser.
package session

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vietshop/posterm/internal/domain/order"
)

// Fixed storage keys. There is no schema versioning; values are JSON blobs
// under well-known names, matching the legacy storage layout.
const (
	KeyAccessToken = "access_token"
	KeyProfile     = "user_profile"
	KeyShift       = "current_shift"
	KeyLastOrder   = "last_order"
	KeyShopInfo    = "shop_info"
	KeyActiveTab   = "active_tab"
)

// Store is a string-keyed blob store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Profile identifies the logged-in cashier and their shop.
type Profile struct {
	UserID int64  `json:"userId"`
	ShopID int64  `json:"shopId"`
	Name   string `json:"name,omitempty"`
}

// Shift is the cashier's open working session. Orders created by the
// workflow are grouped under it.
type Shift struct {
	ID           int64           `json:"shiftId"`
	OpenedAt     time.Time       `json:"openedAt"`
	OpeningFloat decimal.Decimal `json:"openingFloat"`
}

// ShopInfo is the read-mostly shop snapshot printed on receipts. Cached once
// fetched; invalidated only by explicit clearing.
type ShopInfo struct {
	Name    string `json:"name"`
	Branch  string `json:"branch,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Wifi    string `json:"wifi,omitempty"`
}

// Session exposes typed accessors over a Store.
type Session struct {
	store Store
}

// New wraps a Store with typed accessors.
func New(store Store) *Session {
	return &Session{store: store}
}

// AccessToken returns the stored bearer token, or "" when not logged in.
func (s *Session) AccessToken() string {
	raw, ok := s.store.Get(KeyAccessToken)
	if !ok {
		return ""
	}
	var tok string
	if err := json.Unmarshal(raw, &tok); err != nil {
		return ""
	}
	return tok
}

// SetAccessToken stores the bearer token.
func (s *Session) SetAccessToken(tok string) error {
	return s.setJSON(KeyAccessToken, tok)
}

// Profile returns the stored user profile.
func (s *Session) Profile() (Profile, bool) {
	var p Profile
	return p, s.getJSON(KeyProfile, &p)
}

// SetProfile stores the user profile.
func (s *Session) SetProfile(p Profile) error {
	return s.setJSON(KeyProfile, p)
}

// Shift returns the currently open shift.
func (s *Session) Shift() (Shift, bool) {
	var sh Shift
	return sh, s.getJSON(KeyShift, &sh)
}

// SetShift stores the open shift record.
func (s *Session) SetShift(sh Shift) error {
	return s.setJSON(KeyShift, sh)
}

// LastOrder returns the cached last-order snapshot.
func (s *Session) LastOrder() (*order.Order, bool) {
	var o order.Order
	if !s.getJSON(KeyLastOrder, &o) {
		return nil, false
	}
	return &o, true
}

// SetLastOrder caches an order snapshot for payload fallback and reload
// recovery.
func (s *Session) SetLastOrder(o *order.Order) error {
	return s.setJSON(KeyLastOrder, o)
}

// ShopInfo returns the cached shop snapshot.
func (s *Session) ShopInfo() (ShopInfo, bool) {
	var si ShopInfo
	return si, s.getJSON(KeyShopInfo, &si)
}

// SetShopInfo caches the shop snapshot.
func (s *Session) SetShopInfo(si ShopInfo) error {
	return s.setJSON(KeyShopInfo, si)
}

// ActiveTab returns the persisted payment tab selection, so a reload of the
// cashier UI restores the tab the same way the old URL reflection did.
func (s *Session) ActiveTab() (order.Tab, bool) {
	var raw string
	if !s.getJSON(KeyActiveTab, &raw) {
		return "", false
	}
	return order.ParseTab(raw)
}

// SetActiveTab persists the payment tab selection.
func (s *Session) SetActiveTab(t order.Tab) error {
	return s.setJSON(KeyActiveTab, string(t))
}

// Clear removes a single key.
func (s *Session) Clear(key string) error {
	return s.store.Delete(key)
}

// Reset wipes every known key, the logout path.
func (s *Session) Reset() error {
	for _, key := range []string{
		KeyAccessToken, KeyProfile, KeyShift, KeyLastOrder, KeyShopInfo, KeyActiveTab,
	} {
		if err := s.store.Delete(key); err != nil {
			return errors.Wrapf(err, "clear %s", key)
		}
	}
	return nil
}

func (s *Session) getJSON(key string, dst any) bool {
	raw, ok := s.store.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (s *Session) setJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal session value")
	}
	return s.store.Set(key, raw)
}
