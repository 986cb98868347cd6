package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

// zeroAddress stands in for the seller of mock listings
const zeroAddress = "0x0000000000000000000000000000000000000000"

// NFT is the mock token detail served until the contract is indexed
type NFT struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Contract    string `json:"contract"`
	ChainID     int64  `json:"chainId"`
}

// Listing is the mock marketplace listing detail
type Listing struct {
	ID          string `json:"id"`
	NFTID       string `json:"nftId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Seller      string `json:"seller"`
	Contract    string `json:"contract"`
	ChainID     int64  `json:"chainId"`
}

// handleStatus handles GET /api/status - Which integrations are configured
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.status.Status(r.Context()))
}

// handleNFT handles GET /api/nft/{id}
func (s *Server) handleNFT(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"nft": NFT{
			ID:          id,
			Name:        fmt.Sprintf("NovaTok NFT #%s", id),
			Description: "A unique NovaTok collectible",
			Image:       fmt.Sprintf("https://picsum.photos/seed/%s/400/400", url.PathEscape(id)),
			Contract:    s.config.NFTContractAddress,
			ChainID:     s.config.ChainID,
		},
	})
}

// handleMarketplaceListing handles GET /api/marketplace/{id}
func (s *Server) handleMarketplaceListing(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"listing": Listing{
			ID:          id,
			NFTID:       id,
			Name:        fmt.Sprintf("NovaTok NFT #%s", id),
			Description: "Available on NovaTok Marketplace",
			Image:       fmt.Sprintf("https://picsum.photos/seed/listing%s/400/400", url.PathEscape(id)),
			Price:       "0.01",
			Currency:    "ETH",
			Seller:      zeroAddress,
			Contract:    s.config.NFTContractAddress,
			ChainID:     s.config.ChainID,
		},
	})
}
