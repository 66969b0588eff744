// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/jessevdk/go-flags"
	"github.com/ordswap/ordswap/internal/cfgutil"
	"github.com/ordswap/ordswap/netparams"
	"github.com/ordswap/ordswap/tradelog"
)

var datadir = btcutil.AppDataDir("ordswap", false)

// Flags.
var opts = struct {
	Drop    bool   `long:"drop" description:"Drop every journal entry"`
	Force   bool   `short:"f" description:"Drop without prompt"`
	Journal string `long:"journal" description:"Journal directory without the network suffix"`
	TestNet bool   `long:"testnet" description:"Read the testnet3 journal"`
	SigNet  bool   `long:"signet" description:"Read the signet journal"`
	RegTest bool   `long:"regtest" description:"Read the regtest journal"`
}{
	Journal: filepath.Join(datadir, "journal"),
}

func init() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	params := &netparams.MainNetParams
	switch {
	case opts.TestNet:
		params = &netparams.TestNet3Params
	case opts.SigNet:
		params = &netparams.SigNetParams
	case opts.RegTest:
		params = &netparams.RegTestParams
	}
	opts.Journal = filepath.Join(
		cfgutil.CleanAndExpandPath(opts.Journal), params.Name,
	)
}

func yes(s string) bool {
	switch s {
	case "y", "Y", "yes", "Yes":
		return true
	default:
		return false
	}
}

func no(s string) bool {
	switch s {
	case "n", "N", "no", "No":
		return true
	default:
		return false
	}
}

func main() {
	os.Exit(mainInt())
}

func mainInt() int {
	fmt.Println("Journal path:", opts.Journal)
	_, err := os.Stat(filepath.Join(opts.Journal, tradelog.DBName))
	if os.IsNotExist(err) {
		fmt.Println("Journal does not exist")
		return 1
	}

	journal, err := tradelog.Open(opts.Journal, tradelog.DefaultDBTimeout)
	if err != nil {
		fmt.Println("Failed to open journal:", err)
		return 1
	}
	defer journal.Close()

	if opts.Drop {
		return drop(journal)
	}

	err = journal.ForEach(func(e *tradelog.Entry) error {
		printEntry(e)
		return nil
	})
	if err != nil {
		fmt.Println("Failed to read journal:", err)
		return 1
	}

	return 0
}

func drop(journal *tradelog.Journal) int {
	for !opts.Force {
		fmt.Print("Drop all ordswap trade history? [y/N] ")

		scanner := bufio.NewScanner(bufio.NewReader(os.Stdin))
		if !scanner.Scan() {
			// Exit on EOF.
			return 0
		}
		err := scanner.Err()
		if err != nil {
			fmt.Println()
			fmt.Println(err)
			return 1
		}
		resp := scanner.Text()
		if yes(resp) {
			break
		}
		if no(resp) || resp == "" {
			return 0
		}

		fmt.Println("Enter yes or no.")
	}

	fmt.Println("Dropping trade history")
	if err := journal.Reset(); err != nil {
		fmt.Println("Failed to drop trade history:", err)
		return 1
	}

	return 0
}

func printEntry(e *tradelog.Entry) {
	fmt.Printf("%d %s %s artifact=%s price=%v", e.Seq,
		e.Started.Format(time.RFC3339), e.State, e.ArtifactID, e.Price)
	e.PurchaseTxid.WhenSome(func(txid chainhash.Hash) {
		fmt.Printf(" purchase=%v fee=%v change=%v", txid, e.Fee,
			e.Change)
	})
	e.AnchorSplit.WhenSome(func(txid chainhash.Hash) {
		fmt.Printf(" anchorsplit=%v", txid)
	})
	if e.Failure != "" {
		fmt.Printf(" error=%q", e.Failure)
	}
	fmt.Printf(" id=%s\n", e.TradeID)
}
