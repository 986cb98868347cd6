package service

import (
	"context"
	"sync"
	"time"

	"github.com/qr-hub/internal/config"
	"github.com/qr-hub/internal/destination"
	"github.com/qr-hub/internal/logging"
)

const statusPingTimeout = 2 * time.Second

// Pinger is a dependency whose reachability is reported by /status
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseStatus describes the record store
type DatabaseStatus struct {
	Configured bool   `json:"configured"`
	Backend    string `json:"backend"`
	Reachable  *bool  `json:"reachable,omitempty"`
}

// AuthStatus describes bearer token signing
type AuthStatus struct {
	Configured bool `json:"configured"`
}

// StripeStatus describes Stripe credentials. Keys are reported as "Set" or "Missing".
type StripeStatus struct {
	Configured     bool   `json:"configured"`
	PublishableKey string `json:"publishableKey"`
	SecretKey      string `json:"secretKey"`
}

// Web3Status describes wallet and contract configuration
type Web3Status struct {
	WalletConnectConfigured bool   `json:"walletConnectConfigured"`
	NovaTokenConfigured     bool   `json:"novaTokenConfigured"`
	NFTContractConfigured   bool   `json:"nftContractConfigured"`
	ChainID                 int64  `json:"chainId"`
	NovaAddress             string `json:"novaAddress,omitempty"`
	NFTAddress              string `json:"nftAddress,omitempty"`
}

// CacheStatus describes the Redis slug cache and scan meter
type CacheStatus struct {
	Configured bool  `json:"configured"`
	Reachable  *bool `json:"reachable,omitempty"`
}

// Status is the feature-flag report served by /status
type Status struct {
	Database DatabaseStatus `json:"database"`
	Auth     AuthStatus     `json:"auth"`
	Stripe   StripeStatus   `json:"stripe"`
	Web3     Web3Status     `json:"web3"`
	Cache    CacheStatus    `json:"cache"`
	Demo     bool           `json:"demo"`
	Degraded bool           `json:"degraded"`
}

// StatusService reports which integrations are configured and reachable
type StatusService struct {
	cfg      *config.Config
	authOK   bool
	database Pinger
	cache    Pinger
	logger   *logging.Logger
}

// NewStatusService creates a status service. database and cache may be nil
// when those backends are not in use.
func NewStatusService(cfg *config.Config, authConfigured bool, database, cache Pinger) *StatusService {
	return &StatusService{
		cfg:      cfg,
		authOK:   authConfigured,
		database: database,
		cache:    cache,
		logger:   logging.GetGlobalLogger().WithField("service", "status"),
	}
}

func setOrMissing(v string) string {
	if v != "" {
		return "Set"
	}
	return "Missing"
}

// Status builds the report, pinging the configured backends in parallel
func (s *StatusService) Status(ctx context.Context) *Status {
	stripeCfg := s.cfg.Integrations.Stripe
	web3 := s.cfg.Integrations.Web3

	st := &Status{
		Database: DatabaseStatus{
			Configured: s.cfg.Store.Backend != config.BackendMemory,
			Backend:    s.cfg.Store.Backend,
		},
		Auth: AuthStatus{Configured: s.authOK},
		Stripe: StripeStatus{
			Configured:     stripeCfg.SecretKey != "" && stripeCfg.PublishableKey != "",
			PublishableKey: setOrMissing(stripeCfg.PublishableKey),
			SecretKey:      setOrMissing(stripeCfg.SecretKey),
		},
		Web3: Web3Status{
			WalletConnectConfigured: web3.WalletConnectProjectID != "",
			NovaTokenConfigured:     destination.IsConfiguredContract(web3.NovaTokenAddress),
			NFTContractConfigured:   destination.IsConfiguredContract(web3.NFTContractAddress),
			ChainID:                 web3.ChainID,
			NovaAddress:             web3.NovaTokenAddress,
			NFTAddress:              web3.NFTContractAddress,
		},
		Cache: CacheStatus{Configured: s.cfg.Cache.Enabled},
	}
	st.Demo = !st.Database.Configured

	pingCtx, cancel := context.WithTimeout(ctx, statusPingTimeout)
	defer cancel()

	var wg sync.WaitGroup
	if s.database != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Database.Reachable = s.ping(pingCtx, "database", s.database)
		}()
	}
	if s.cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Cache.Reachable = s.ping(pingCtx, "cache", s.cache)
		}()
	}
	wg.Wait()

	st.Degraded = (st.Database.Reachable != nil && !*st.Database.Reachable) ||
		(st.Cache.Reachable != nil && !*st.Cache.Reachable)
	return st
}

func (s *StatusService) ping(ctx context.Context, name string, p Pinger) *bool {
	ok := true
	if err := p.Ping(ctx); err != nil {
		s.logger.WithError(err).WithField("dependency", name).Warn("Status check failed")
		ok = false
	}
	return &ok
}
