// Package destination validates and normalises QR destination configs.
package destination

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qr-hub/internal/types"
)

// Result is the outcome of validating a destination config
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func valid() Result { return Result{Valid: true} }

func invalid(format string, args ...interface{}) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks raw against the required-field table for qrType.
// It never panics and never returns an error: malformed input is reported as invalid.
func Validate(qrType types.QRType, raw json.RawMessage) Result {
	if !qrType.IsValid() {
		return invalid("Unknown QR type %q", string(qrType))
	}

	cfg, err := types.DecodeDestinationConfig(qrType, raw)
	if err != nil {
		return invalid("%s destination config is malformed: %v", qrType.Label(), err)
	}

	return validateConfig(cfg)
}

func validateConfig(cfg types.DestinationConfig) Result {
	if missing(cfg) {
		return invalid("Destination config is required")
	}

	switch c := cfg.(type) {
	case *types.FiatConfig:
		if c.Amount == 0 || blank(c.Currency) || blank(c.ProductName) {
			return invalid("Fiat payments require amount, currency, and product name")
		}
		if c.Amount < 0 {
			return invalid("Fiat payments require a positive amount")
		}
		if types.CanonicalFiatCurrency(c.Currency) == "" {
			return invalid("Fiat payments require currency to be one of %s", strings.Join(types.FiatCurrencies, ", "))
		}
	case *types.CryptoConfig:
		if blank(c.WalletAddress) || blank(c.Currency) {
			return invalid("Crypto payments require wallet address and currency")
		}
		if types.CanonicalCryptoCurrency(c.Currency) == "" {
			return invalid("Crypto payments require currency to be one of %s", strings.Join(types.CryptoCurrencies, ", "))
		}
	case *types.NovaConfig:
		if blank(c.WalletAddress) {
			return invalid("NOVA payments require receiving wallet address")
		}
	case *types.NFTMintConfig:
		if blank(c.NFTName) {
			return invalid("NFT mint requires NFT name")
		}
	case *types.NFTListingConfig:
		if blank(c.ListingID) || c.Price == 0 {
			return invalid("NFT listing requires listing ID and price")
		}
		if c.Price < 0 {
			return invalid("NFT listing requires a positive price")
		}
	case *types.MultiOptionConfig:
		// no required fields
	default:
		return invalid("Unknown QR type %q", string(cfg.QRType()))
	}
	return valid()
}

// missing reports a nil config, including a nil pointer to a known variant
func missing(cfg types.DestinationConfig) bool {
	switch c := cfg.(type) {
	case nil:
		return true
	case *types.FiatConfig:
		return c == nil
	case *types.CryptoConfig:
		return c == nil
	case *types.NovaConfig:
		return c == nil
	case *types.NFTMintConfig:
		return c == nil
	case *types.NFTListingConfig:
		return c == nil
	case *types.MultiOptionConfig:
		return c == nil
	}
	return false
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
