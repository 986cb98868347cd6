package types

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDestinationConfigEncoding_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("decoded variant always matches the requested type", prop.ForAll(
		func(qt QRType) bool {
			cfg, err := DecodeDestinationConfig(qt, json.RawMessage(`{}`))
			return err == nil && cfg.QRType() == qt
		},
		gen.OneConstOf(QRTypeFiat, QRTypeCrypto, QRTypeNova, QRTypeNFTMint, QRTypeNFTListing, QRTypeMultiOption),
	))

	properties.Property("fiat configs survive encode and decode", prop.ForAll(
		func(amount float64, product string) bool {
			in := &FiatConfig{Amount: amount, Currency: "usd", ProductName: product}
			raw, err := json.Marshal(in)
			if err != nil {
				return false
			}
			out, err := DecodeDestinationConfig(QRTypeFiat, raw)
			if err != nil {
				return false
			}
			return *out.(*FiatConfig) == *in
		},
		gen.Float64Range(0.01, 1e6),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
