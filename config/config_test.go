package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, uint32(500), cfg.Auction.TakerFeeBps)
	require.Equal(t, 20, cfg.BountyQueue.MaxActiveSubmissions)

	// Loading the written file round-trips.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Auction, reloaded.Auction)
	require.Equal(t, cfg.BountyQueue, reloaded.BountyQueue)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.toml")
	raw := `
DataDir = "/tmp/market"
Owner = "0x0000000000000000000000000000000000000001"
FeeReceiver = "0x0000000000000000000000000000000000000009"
Approvers = ["0x0000000000000000000000000000000000000002"]
TokenSupply = "1000000"

[Auction]
MakerFeeBps = 250
TakerFeeBps = 500
EarlyWithdrawFeeBps = 1000
MinimumStepBps = 500
ListingStake = "10000"
MinimumBuyout = "50000"
DefaultDurationDays = 30
CooldownDays = 15
AcceptingListings = true

[Bounty]
MakerFeeBps = 250
TakerFeeBps = 500
SubmissionStake = "10000"
DurationDays = 30
AcceptingBounties = true

[BountyQueue]
MakerFeeBps = 250
TakerFeeBps = 500
SubmissionStake = "10000"
DurationDays = 30
AcceptingBounties = true
MaxActiveSubmissions = 20
MinimumBounty = "50000"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)

	settings, err := cfg.AuctionSettings()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10_000), settings.ListingStake)
	require.Equal(t, int64(30*86_400), settings.DefaultDuration)
	require.Equal(t, int64(15*86_400), settings.Cooldown)
	require.NoError(t, settings.Validate())

	queue, err := cfg.QueueSettings()
	require.NoError(t, err)
	require.Equal(t, 20, queue.MaxActiveSubmissions)
	require.Equal(t, big.NewInt(50_000), queue.MinimumBounty)

	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	require.Equal(t, byte(1), owner[19])

	approvers, err := cfg.ApproverAddresses()
	require.NoError(t, err)
	require.Len(t, approvers, 1)
}

func TestParseAddressRejectsBadInput(t *testing.T) {
	_, err := ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("zz")
	require.Error(t, err)
	_, err = ParseAmount("not-a-number")
	require.Error(t, err)
}
