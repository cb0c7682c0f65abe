// Package config loads the daemon configuration from TOML and converts it
// into engine settings.
package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakemarket/core/types"
	"stakemarket/native/auction"
	"stakemarket/native/bounty"
)

const daySeconds = int64(86_400)

type Config struct {
	DataDir        string   `toml:"DataDir"`
	MetricsAddress string   `toml:"MetricsAddress"`
	LogLevel       string   `toml:"LogLevel"`
	Owner          string   `toml:"Owner"`
	FeeReceiver    string   `toml:"FeeReceiver"`
	Approvers      []string `toml:"Approvers"`
	TokenSupply    string   `toml:"TokenSupply"`

	Auction     AuctionConfig `toml:"Auction"`
	Bounty      BountyConfig  `toml:"Bounty"`
	BountyQueue QueueConfig   `toml:"BountyQueue"`
}

type AuctionConfig struct {
	MakerFeeBps         uint32 `toml:"MakerFeeBps"`
	TakerFeeBps         uint32 `toml:"TakerFeeBps"`
	EarlyWithdrawFeeBps uint32 `toml:"EarlyWithdrawFeeBps"`
	MinimumStepBps      uint32 `toml:"MinimumStepBps"`
	ListingStake        string `toml:"ListingStake"`
	MinimumBuyout       string `toml:"MinimumBuyout"`
	DefaultDurationDays int64  `toml:"DefaultDurationDays"`
	CooldownDays        int64  `toml:"CooldownDays"`
	AcceptingListings   bool   `toml:"AcceptingListings"`
}

type BountyConfig struct {
	MakerFeeBps       uint32 `toml:"MakerFeeBps"`
	TakerFeeBps       uint32 `toml:"TakerFeeBps"`
	SubmissionStake   string `toml:"SubmissionStake"`
	DurationDays      int64  `toml:"DurationDays"`
	AcceptingBounties bool   `toml:"AcceptingBounties"`
}

type QueueConfig struct {
	BountyConfig
	MaxActiveSubmissions int    `toml:"MaxActiveSubmissions"`
	MinimumBounty        string `toml:"MinimumBounty"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./market-data"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(raw string) (types.Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("config: invalid address %q: %w", raw, err)
	}
	if len(decoded) != 20 {
		return types.ZeroAddress, fmt.Errorf("config: address %q must be 20 bytes", raw)
	}
	var out types.Address
	copy(out[:], decoded)
	return out, nil
}

// ParseAmount decodes a base-10 token amount.
func ParseAmount(raw string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid amount %q", raw)
	}
	return out, nil
}

// AuctionSettings converts the auction section into engine settings.
func (c *Config) AuctionSettings() (auction.Settings, error) {
	receiver, err := ParseAddress(c.FeeReceiver)
	if err != nil {
		return auction.Settings{}, err
	}
	stake, err := ParseAmount(c.Auction.ListingStake)
	if err != nil {
		return auction.Settings{}, err
	}
	buyoutFloor, err := ParseAmount(c.Auction.MinimumBuyout)
	if err != nil {
		return auction.Settings{}, err
	}
	return auction.Settings{
		MakerFeeBps:         c.Auction.MakerFeeBps,
		TakerFeeBps:         c.Auction.TakerFeeBps,
		EarlyWithdrawFeeBps: c.Auction.EarlyWithdrawFeeBps,
		MinimumStepBps:      c.Auction.MinimumStepBps,
		ListingStake:        stake,
		MinimumBuyout:       buyoutFloor,
		DefaultDuration:     c.Auction.DefaultDurationDays * daySeconds,
		Cooldown:            c.Auction.CooldownDays * daySeconds,
		FeeReceiver:         receiver,
		AcceptingListings:   c.Auction.AcceptingListings,
	}, nil
}

func (c *Config) bountySettings(section BountyConfig) (bounty.Settings, error) {
	receiver, err := ParseAddress(c.FeeReceiver)
	if err != nil {
		return bounty.Settings{}, err
	}
	stake, err := ParseAmount(section.SubmissionStake)
	if err != nil {
		return bounty.Settings{}, err
	}
	return bounty.Settings{
		MakerFeeBps:       section.MakerFeeBps,
		TakerFeeBps:       section.TakerFeeBps,
		SubmissionStake:   stake,
		BountyDuration:    section.DurationDays * daySeconds,
		FeeReceiver:       receiver,
		AcceptingBounties: section.AcceptingBounties,
	}, nil
}

// BountySettings converts the single-submission bounty section.
func (c *Config) BountySettings() (bounty.Settings, error) {
	return c.bountySettings(c.Bounty)
}

// QueueSettings converts the queue bounty section, including the capacity
// and minimum bounty floor.
func (c *Config) QueueSettings() (bounty.Settings, error) {
	settings, err := c.bountySettings(c.BountyQueue.BountyConfig)
	if err != nil {
		return bounty.Settings{}, err
	}
	floor, err := ParseAmount(c.BountyQueue.MinimumBounty)
	if err != nil {
		return bounty.Settings{}, err
	}
	settings.MaxActiveSubmissions = c.BountyQueue.MaxActiveSubmissions
	settings.MinimumBounty = floor
	return settings, nil
}

// OwnerAddress decodes the configured owner.
func (c *Config) OwnerAddress() (types.Address, error) {
	return ParseAddress(c.Owner)
}

// ApproverAddresses decodes the configured approver set.
func (c *Config) ApproverAddresses() ([]types.Address, error) {
	out := make([]types.Address, 0, len(c.Approvers))
	for _, raw := range c.Approvers {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:        "./market-data",
		MetricsAddress: ":9464",
		LogLevel:       "info",
		Owner:          "0x0000000000000000000000000000000000000001",
		FeeReceiver:    "0x0000000000000000000000000000000000000009",
		Approvers:      []string{},
		TokenSupply:    "1000000000000000000000000000",
		Auction: AuctionConfig{
			MakerFeeBps:         250,
			TakerFeeBps:         500,
			EarlyWithdrawFeeBps: 1000,
			MinimumStepBps:      500,
			ListingStake:        "10000000000000000000",
			MinimumBuyout:       "1000000000000000000",
			DefaultDurationDays: 30,
			CooldownDays:        15,
			AcceptingListings:   true,
		},
		Bounty: BountyConfig{
			MakerFeeBps:       250,
			TakerFeeBps:       500,
			SubmissionStake:   "10000000000000000000",
			DurationDays:      30,
			AcceptingBounties: true,
		},
		BountyQueue: QueueConfig{
			BountyConfig: BountyConfig{
				MakerFeeBps:       250,
				TakerFeeBps:       500,
				SubmissionStake:   "10000000000000000000",
				DurationDays:      30,
				AcceptingBounties: true,
			},
			MaxActiveSubmissions: 20,
			MinimumBounty:        "50000000000000000000",
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
