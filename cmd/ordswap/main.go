// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ordswap/ordswap/chain"
	"github.com/ordswap/ordswap/explorer"
	"github.com/ordswap/ordswap/swap"
	"github.com/ordswap/ordswap/trade"
	"github.com/ordswap/ordswap/tradelog"
)

const version = "0.1.0"

var newlineBytes = []byte{'\n'}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Stderr.Write(newlineBytes)
	if logRotator != nil {
		logRotator.Close()
	}
	os.Exit(1)
}

func errContext(err error, context string) error {
	return fmt.Errorf("%s: %w", context, err)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fatalf("%v", err)
	}
}

// run wires the collaborators together and executes one trade.
func run(ctx context.Context, cfg *config) error {
	newWallet := func(name string) (*chain.Wallet, error) {
		return chain.NewWallet(chain.WalletConfig{
			ChainParams: cfg.activeNet.Params,
			Host:        cfg.RPCConnect,
			Name:        name,
			User:        cfg.RPCUser,
			Pass:        cfg.RPCPass,
			CookiePath:  cfg.RPCCookie,
			MinConf:     cfg.MinConf,
		})
	}

	seller, err := newWallet(cfg.SellerWallet)
	if err != nil {
		return errContext(err, "seller wallet")
	}
	defer seller.Stop()

	buyer, err := newWallet(cfg.BuyerWallet)
	if err != nil {
		return errContext(err, "buyer wallet")
	}
	defer buyer.Stop()

	ord, err := explorer.NewClient(cfg.ordConfig())
	if err != nil {
		return err
	}

	payout, err := decodeAddress(cfg.PayoutAddr, cfg)
	if err != nil {
		return errContext(err, "payout address")
	}
	receive, err := decodeAddress(cfg.ReceiveAddr, cfg)
	if err != nil {
		return errContext(err, "receive address")
	}

	tradeCfg := trade.Config{
		Seller:          seller,
		Buyer:           buyer,
		Metadata:        ord,
		Params:          cfg.activeNet.Params,
		Policy:          cfg.policy,
		PayoutAddress:   payout,
		ReceiveAddress:  receive,
		ClassifyWorkers: cfg.ClassifyWorkers,
		PollInterval:    cfg.PollInterval,
	}
	if !cfg.NoJournal {
		journal, err := tradelog.Open(
			cfg.Journal, tradelog.DefaultDBTimeout,
		)
		if err != nil {
			return errContext(err, "journal")
		}
		defer journal.Close()

		tradeCfg.Journal = journal
	}

	orchestrator, err := trade.New(tradeCfg)
	if err != nil {
		return err
	}

	log.Infof("Trading inscription %s for %v on %s (seller wallet %q, "+
		"buyer wallet %q)", cfg.Inscription, cfg.Price.Amount,
		cfg.activeNet.Name, seller.Name(), buyer.Name())

	report, err := orchestrator.Execute(
		ctx, cfg.Inscription, cfg.Price.Amount,
	)
	report.AnchorSplit.WhenSome(func(txid chainhash.Hash) {
		log.Infof("Anchor split transaction: %v", txid)
	})
	if err != nil {
		if kind, ok := swap.KindOf(err); ok {
			log.Errorf("Trade %s failed (%v)", report.ID, kind)
		}
		return err
	}

	report.PurchaseTxid.WhenSome(func(txid chainhash.Hash) {
		log.Infof("Trade %s complete: purchase transaction %v",
			report.ID, txid)
		fmt.Println(txid)
	})

	return nil
}

// decodeAddress decodes an optional address for the active network.
func decodeAddress(addr string, cfg *config) (btcutil.Address, error) {
	if addr == "" {
		return nil, nil
	}

	decoded, err := btcutil.DecodeAddress(addr, cfg.activeNet.Params)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(cfg.activeNet.Params) {
		return nil, fmt.Errorf("address %s is not for %s", addr,
			cfg.activeNet.Name)
	}

	return decoded, nil
}
