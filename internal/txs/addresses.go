package txs

import (
	"fmt"

	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// AddressProvider resolves the contracts the flows talk to.
type AddressProvider interface {
	ANC() string
	BLunaToken() string
	Custody() string
	Overseer() string
	Market() string
	Oracle() string
	Gov() string
	Staking() string
	TerraswapAncUstPair() string
	TerraswapAncUstLPToken() string
}

// Contracts is a static AddressProvider, usually loaded from configuration.
type Contracts struct {
	ANCToken          string `toml:"anc_token" json:"ancToken"`
	BLunaTokenAddr    string `toml:"bluna_token" json:"bLunaToken"`
	CustodyAddr       string `toml:"custody" json:"custody"`
	OverseerAddr      string `toml:"overseer" json:"overseer"`
	MarketAddr        string `toml:"market" json:"market"`
	OracleAddr        string `toml:"oracle" json:"oracle"`
	GovAddr           string `toml:"gov" json:"gov"`
	StakingAddr       string `toml:"staking" json:"staking"`
	AncUstPairAddr    string `toml:"anc_ust_pair" json:"ancUstPair"`
	AncUstLPTokenAddr string `toml:"anc_ust_lp_token" json:"ancUstLPToken"`
}

var _ AddressProvider = (*Contracts)(nil)

func (c *Contracts) ANC() string                    { return c.ANCToken }
func (c *Contracts) BLunaToken() string             { return c.BLunaTokenAddr }
func (c *Contracts) Custody() string                { return c.CustodyAddr }
func (c *Contracts) Overseer() string               { return c.OverseerAddr }
func (c *Contracts) Market() string                 { return c.MarketAddr }
func (c *Contracts) Oracle() string                 { return c.OracleAddr }
func (c *Contracts) Gov() string                    { return c.GovAddr }
func (c *Contracts) Staking() string                { return c.StakingAddr }
func (c *Contracts) TerraswapAncUstPair() string    { return c.AncUstPairAddr }
func (c *Contracts) TerraswapAncUstLPToken() string { return c.AncUstLPTokenAddr }

// Validate checks every configured address.
func (c *Contracts) Validate() error {
	fields := []struct {
		name, addr string
	}{
		{"anc_token", c.ANCToken},
		{"bluna_token", c.BLunaTokenAddr},
		{"custody", c.CustodyAddr},
		{"overseer", c.OverseerAddr},
		{"market", c.MarketAddr},
		{"oracle", c.OracleAddr},
		{"gov", c.GovAddr},
		{"staking", c.StakingAddr},
		{"anc_ust_pair", c.AncUstPairAddr},
		{"anc_ust_lp_token", c.AncUstLPTokenAddr},
	}
	for _, f := range fields {
		if err := wallet.ValidateAddress(f.addr); err != nil {
			return fmt.Errorf("contracts.%s: %w", f.name, err)
		}
	}
	return nil
}
