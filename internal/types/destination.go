package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DestinationConfig is the type-specific payload describing where a scan routes.
// Exactly one implementation exists per QRType.
type DestinationConfig interface {
	QRType() QRType
	isDestinationConfig()
}

// FiatConfig routes to a hosted card checkout
type FiatConfig struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	ProductName string  `json:"productName"`
	Description string  `json:"description,omitempty"`
}

// CryptoConfig routes to a direct wallet payment. A nil Amount lets the payer choose.
type CryptoConfig struct {
	WalletAddress string   `json:"walletAddress"`
	Currency      string   `json:"currency"`
	Amount        *float64 `json:"amount,omitempty"`
}

// NovaConfig routes to a NOVA token payment
type NovaConfig struct {
	WalletAddress string   `json:"walletAddress"`
	Amount        *float64 `json:"amount,omitempty"`
}

// NFTMintConfig routes to an NFT mint page
type NFTMintConfig struct {
	NFTName        string   `json:"nftName"`
	NFTDescription string   `json:"nftDescription,omitempty"`
	MintPrice      *float64 `json:"mintPrice,omitempty"`
	ImageURL       string   `json:"imageUrl,omitempty"`
}

// NFTListingConfig routes to a marketplace listing
type NFTListingConfig struct {
	ListingID string  `json:"listingId"`
	Price     float64 `json:"price"`
	NFTName   string  `json:"nftName,omitempty"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// MultiOptionConfig presents a choice between the populated payment options
type MultiOptionConfig struct {
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	FiatAmount    *float64 `json:"fiatAmount,omitempty"`
	CryptoAmount  *float64 `json:"cryptoAmount,omitempty"`
	WalletAddress string   `json:"walletAddress,omitempty"`
}

func (FiatConfig) QRType() QRType        { return QRTypeFiat }
func (CryptoConfig) QRType() QRType      { return QRTypeCrypto }
func (NovaConfig) QRType() QRType        { return QRTypeNova }
func (NFTMintConfig) QRType() QRType     { return QRTypeNFTMint }
func (NFTListingConfig) QRType() QRType  { return QRTypeNFTListing }
func (MultiOptionConfig) QRType() QRType { return QRTypeMultiOption }

func (FiatConfig) isDestinationConfig()        {}
func (CryptoConfig) isDestinationConfig()      {}
func (NovaConfig) isDestinationConfig()        {}
func (NFTMintConfig) isDestinationConfig()     {}
func (NFTListingConfig) isDestinationConfig()  {}
func (MultiOptionConfig) isDestinationConfig() {}

// ErrUnknownQRType is returned when decoding a config for an unsupported type
var ErrUnknownQRType = errors.New("unknown QR type")

// ErrConfigNotObject is returned when the raw config is not a JSON object
var ErrConfigNotObject = errors.New("destination config must be a JSON object")

// DecodeDestinationConfig decodes raw JSON into the variant for qrType.
// An empty or null payload decodes to the zero-valued variant.
func DecodeDestinationConfig(qrType QRType, raw json.RawMessage) (DestinationConfig, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if trimmed[0] != '{' {
		return nil, ErrConfigNotObject
	}

	var (
		cfg DestinationConfig
		err error
	)
	switch qrType {
	case QRTypeFiat:
		var c FiatConfig
		err = json.Unmarshal(trimmed, &c)
		cfg = &c
	case QRTypeCrypto:
		var c CryptoConfig
		err = json.Unmarshal(trimmed, &c)
		cfg = &c
	case QRTypeNova:
		var c NovaConfig
		err = json.Unmarshal(trimmed, &c)
		cfg = &c
	case QRTypeNFTMint:
		var c NFTMintConfig
		err = json.Unmarshal(trimmed, &c)
		cfg = &c
	case QRTypeNFTListing:
		var c NFTListingConfig
		err = json.Unmarshal(trimmed, &c)
		cfg = &c
	case QRTypeMultiOption:
		var c MultiOptionConfig
		err = json.Unmarshal(trimmed, &c)
		cfg = &c
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQRType, qrType)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid destination config: %w", err)
	}
	return cfg, nil
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// CloneDestinationConfig returns a deep copy of cfg
func CloneDestinationConfig(cfg DestinationConfig) DestinationConfig {
	switch c := cfg.(type) {
	case *FiatConfig:
		cp := *c
		return &cp
	case *CryptoConfig:
		cp := *c
		cp.Amount = cloneFloat(c.Amount)
		return &cp
	case *NovaConfig:
		cp := *c
		cp.Amount = cloneFloat(c.Amount)
		return &cp
	case *NFTMintConfig:
		cp := *c
		cp.MintPrice = cloneFloat(c.MintPrice)
		return &cp
	case *NFTListingConfig:
		cp := *c
		return &cp
	case *MultiOptionConfig:
		cp := *c
		cp.FiatAmount = cloneFloat(c.FiatAmount)
		cp.CryptoAmount = cloneFloat(c.CryptoAmount)
		return &cp
	default:
		return cfg
	}
}
