package order

import (
	"strconv"
	"strings"
)

// Method is the numeric payment method code used by the backend.
type Method int

const (
	MethodUnknown      Method = 0
	MethodCash         Method = 1
	MethodBankTransfer Method = 2
	MethodNFC          Method = 3
	MethodATM          Method = 4
)

// String returns the backend API name for the method.
func (m Method) String() string {
	switch m {
	case MethodCash:
		return "Cash"
	case MethodBankTransfer:
		return "BankTransfer"
	case MethodNFC:
		return "NFC"
	case MethodATM:
		return "ATM"
	default:
		return "Unknown"
	}
}

// Valid reports whether m is one of the four backend method codes.
func (m Method) Valid() bool {
	return m >= MethodCash && m <= MethodATM
}

// methodAliases maps lowercase textual representations seen in the wild
// (UI tab names, API enum names, legacy payloads) to method codes.
var methodAliases = map[string]Method{
	"cash":         MethodCash,
	"qr":           MethodBankTransfer,
	"banktransfer": MethodBankTransfer,
	"bank":         MethodBankTransfer,
	"vietqr":       MethodBankTransfer,
	"nfc":          MethodNFC,
	"atm":          MethodATM,
	"card":         MethodATM,
}

// NormalizeMethod maps any representation a payment method arrives in
// (numeric code, case-insensitive string alias, or numeric string) onto
// a Method. Unrecognized values normalize to
// MethodUnknown unless numerically parseable, in which case the numeric
// value is kept as-is so the backend can reject it.
func NormalizeMethod(raw any) Method {
	switch v := raw.(type) {
	case Method:
		return v
	case int:
		return Method(v)
	case int32:
		return Method(v)
	case int64:
		return Method(v)
	case float64:
		return Method(int(v))
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if m, ok := methodAliases[s]; ok {
			return m
		}
		if n, err := strconv.Atoi(s); err == nil {
			return Method(n)
		}
		return MethodUnknown
	default:
		return MethodUnknown
	}
}

// Tab identifies a payment tab in the cashier UI.
type Tab string

const (
	TabCash Tab = "cash"
	TabQR   Tab = "qr"
	TabNFC  Tab = "nfc"
	TabATM  Tab = "atm"
)

// ParseTab validates a tab name from the UI.
func ParseTab(s string) (Tab, bool) {
	switch Tab(strings.ToLower(s)) {
	case TabCash:
		return TabCash, true
	case TabQR:
		return TabQR, true
	case TabNFC:
		return TabNFC, true
	case TabATM:
		return TabATM, true
	default:
		return "", false
	}
}

// Method returns the payment method the tab registers on the order.
func (t Tab) Method() Method {
	switch t {
	case TabCash:
		return MethodCash
	case TabQR:
		return MethodBankTransfer
	case TabNFC:
		return MethodNFC
	case TabATM:
		return MethodATM
	default:
		return MethodUnknown
	}
}
