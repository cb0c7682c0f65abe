package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakemarket/config"
	"stakemarket/core/types"
	"stakemarket/ledger"
	"stakemarket/native/auction"
	"stakemarket/native/bounty"
	"stakemarket/native/registry"
	"stakemarket/observability/logging"
	"stakemarket/storage"
)

// Custody addresses segregate each engine's token holdings inside the
// shared ledger.
var (
	auctionCustody = custodyAddress(0xA1)
	bountyCustody  = custodyAddress(0xB1)
	queueCustody   = custodyAddress(0xB2)
)

func custodyAddress(tag byte) types.Address {
	var out types.Address
	copy(out[:], "stakemarket/engine/")
	out[19] = tag
	return out
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	logger := logging.Setup("marketd", cfg.LogLevel)

	owner, err := cfg.OwnerAddress()
	if err != nil {
		logger.Error("invalid owner address", "err", err)
		os.Exit(1)
	}
	supply, err := config.ParseAmount(cfg.TokenSupply)
	if err != nil {
		logger.Error("invalid token supply", "err", err)
		os.Exit(1)
	}
	reg, err := registry.New(owner)
	if err != nil {
		logger.Error("registry init failed", "err", err)
		os.Exit(1)
	}
	approvers, err := cfg.ApproverAddresses()
	if err != nil {
		logger.Error("invalid approver address", "err", err)
		os.Exit(1)
	}
	for _, approver := range approvers {
		if err := reg.GrantApprover(owner, approver); err != nil {
			logger.Error("grant approver failed", "approver", approver.Hex(), "err", err)
			os.Exit(1)
		}
	}

	token := ledger.NewToken(owner, supply)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "market"))
	if err != nil {
		logger.Error("open database failed", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	auctionSettings, err := cfg.AuctionSettings()
	if err != nil {
		logger.Error("auction settings invalid", "err", err)
		os.Exit(1)
	}
	auctionEngine, err := auction.NewEngine(reg, token.Bind(auctionCustody), auctionSettings)
	if err != nil {
		logger.Error("auction engine init failed", "err", err)
		os.Exit(1)
	}
	auctionEngine.SetState(auction.NewState(db))

	bountySettings, err := cfg.BountySettings()
	if err != nil {
		logger.Error("bounty settings invalid", "err", err)
		os.Exit(1)
	}
	bountyEngine, err := bounty.NewEngine(reg, token.Bind(bountyCustody), bountySettings)
	if err != nil {
		logger.Error("bounty engine init failed", "err", err)
		os.Exit(1)
	}
	bountyEngine.SetState(bounty.NewState(db, "bounty1"))

	queueSettings, err := cfg.QueueSettings()
	if err != nil {
		logger.Error("bounty queue settings invalid", "err", err)
		os.Exit(1)
	}
	queueEngine, err := bounty.NewQueueEngine(reg, token.Bind(queueCustody), queueSettings)
	if err != nil {
		logger.Error("bounty queue engine init failed", "err", err)
		os.Exit(1)
	}
	queueEngine.SetState(bounty.NewState(db, "bounty2"))

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, "ok auctionFees=%s bountyFees=%s queueFees=%s\n",
				auctionEngine.AccruedFees(), bountyEngine.AccruedFees(), queueEngine.AccruedFees())
		})
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	logger.Info("marketd started",
		"owner", owner.Hex(),
		"approvers", len(approvers),
		"dataDir", cfg.DataDir,
		"metrics", cfg.MetricsAddress,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("marketd shutting down")
}
