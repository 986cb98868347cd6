// Package types provides common type definitions for the QR hub.
package types

import "strings"

// QRType identifies which destination a QR code routes to
type QRType string

const (
	// QRTypeFiat routes to a hosted card checkout
	QRTypeFiat QRType = "fiat"
	// QRTypeCrypto routes to a direct wallet payment in ETH, USDC or SOL
	QRTypeCrypto QRType = "crypto"
	// QRTypeNova routes to a NOVA token payment
	QRTypeNova QRType = "nova"
	// QRTypeNFTMint routes to an NFT mint page
	QRTypeNFTMint QRType = "nft_mint"
	// QRTypeNFTListing routes to a marketplace listing
	QRTypeNFTListing QRType = "nft_listing"
	// QRTypeMultiOption lets the scanner pick a payment method
	QRTypeMultiOption QRType = "multi_option"
)

// AllQRTypes lists every supported QR type in display order
var AllQRTypes = []QRType{
	QRTypeFiat,
	QRTypeCrypto,
	QRTypeNova,
	QRTypeNFTMint,
	QRTypeNFTListing,
	QRTypeMultiOption,
}

// IsValid reports whether t is a known QR type
func (t QRType) IsValid() bool {
	for _, known := range AllQRTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label returns the human readable name used in validation messages
func (t QRType) Label() string {
	switch t {
	case QRTypeFiat:
		return "Fiat"
	case QRTypeCrypto:
		return "Crypto"
	case QRTypeNova:
		return "NOVA"
	case QRTypeNFTMint:
		return "NFT mint"
	case QRTypeNFTListing:
		return "NFT listing"
	case QRTypeMultiOption:
		return "Multi-option"
	default:
		return string(t)
	}
}

// EventType represents the kind of interaction recorded against a QR code
type EventType string

const (
	// EventScan is recorded when a QR code is scanned
	EventScan EventType = "scan"
	// EventClicked is recorded when a scanner picks an option
	EventClicked EventType = "clicked"
	// EventPaid is recorded when a payment completes
	EventPaid EventType = "paid"
	// EventMinted is recorded when an NFT mint completes
	EventMinted EventType = "minted"
)

// IsValid reports whether e is a known event type
func (e EventType) IsValid() bool {
	switch e {
	case EventScan, EventClicked, EventPaid, EventMinted:
		return true
	default:
		return false
	}
}

// Plan represents a subscription tier
type Plan string

const (
	// PlanFree is the default tier
	PlanFree Plan = "free"
	// PlanPro is the mid tier
	PlanPro Plan = "pro"
	// PlanBusiness is the top tier with unlimited QR codes
	PlanBusiness Plan = "business"
)

// IsValid reports whether p is a known plan
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanBusiness:
		return true
	default:
		return false
	}
}

// LimitAction names an operation gated by the owner's plan
type LimitAction string

const (
	ActionCreateQR        LimitAction = "create_qr"
	ActionUseCustomDomain LimitAction = "use_custom_domain"
	ActionAPIAccess       LimitAction = "api_access"
	ActionWhiteLabel      LimitAction = "white_label"
	ActionScan            LimitAction = "scan"
)

// RedirectKind is the rendering path a resolved QR code leads to
type RedirectKind string

const (
	RedirectFiatPayment   RedirectKind = "fiat_payment"
	RedirectCryptoPayment RedirectKind = "crypto_payment"
	RedirectTokenPayment  RedirectKind = "token_payment"
	RedirectMint          RedirectKind = "mint"
	RedirectMarketplace   RedirectKind = "marketplace"
	RedirectChoice        RedirectKind = "choice"
)

// Fiat currencies accepted by card checkout
var FiatCurrencies = []string{"usd", "eur", "gbp"}

// Crypto currencies accepted for direct wallet payments
var CryptoCurrencies = []string{"ETH", "USDC", "SOL"}

// CanonicalFiatCurrency returns the canonical spelling of a fiat currency, or "" if unsupported
func CanonicalFiatCurrency(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, known := range FiatCurrencies {
		if c == known {
			return known
		}
	}
	return ""
}

// CanonicalCryptoCurrency returns the canonical spelling of a crypto currency, or "" if unsupported
func CanonicalCryptoCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	for _, known := range CryptoCurrencies {
		if c == known {
			return known
		}
	}
	return ""
}

