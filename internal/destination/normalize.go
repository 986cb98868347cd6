package destination

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/qr-hub/internal/types"
)

// Normalize canonicalises a valid config in place: currency codes get their
// canonical case and EVM wallet addresses are stored in EIP-55 checksum form.
// Non-EVM addresses (e.g. Solana) are only trimmed.
func Normalize(cfg types.DestinationConfig) types.DestinationConfig {
	if missing(cfg) {
		return cfg
	}

	switch c := cfg.(type) {
	case *types.FiatConfig:
		c.Currency = types.CanonicalFiatCurrency(c.Currency)
		c.ProductName = strings.TrimSpace(c.ProductName)
	case *types.CryptoConfig:
		c.Currency = types.CanonicalCryptoCurrency(c.Currency)
		c.WalletAddress = NormalizeWallet(c.WalletAddress)
	case *types.NovaConfig:
		c.WalletAddress = NormalizeWallet(c.WalletAddress)
	case *types.NFTMintConfig:
		c.NFTName = strings.TrimSpace(c.NFTName)
	case *types.NFTListingConfig:
		c.ListingID = strings.TrimSpace(c.ListingID)
	case *types.MultiOptionConfig:
		c.WalletAddress = NormalizeWallet(c.WalletAddress)
	}
	return cfg
}

// NormalizeWallet returns the checksummed form of an EVM address and the
// trimmed input for anything else.
func NormalizeWallet(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}

// IsConfiguredContract reports whether addr is a usable, non-zero contract address.
func IsConfiguredContract(addr string) bool {
	if !common.IsHexAddress(addr) {
		return false
	}
	return common.HexToAddress(addr) != (common.Address{})
}
