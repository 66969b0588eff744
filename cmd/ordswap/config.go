// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/ordswap/ordswap/explorer"
	"github.com/ordswap/ordswap/internal/cfgutil"
	"github.com/ordswap/ordswap/internal/prompt"
	"github.com/ordswap/ordswap/netparams"
	"github.com/ordswap/ordswap/swap"
)

const (
	defaultConfigFilename = "ordswap.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "ordswap.log"
	defaultJournalDirname = "journal"
	defaultSellerWallet   = "ord"
	defaultBuyerWallet    = "buyer"
	defaultOrdURL         = "http://127.0.0.1:80"
	defaultInscription    = "123"
	defaultPrice          = btcutil.Amount(12_340)
	defaultMinConf        = 1
)

var (
	ordswapHomeDir     = btcutil.AppDataDir("ordswap", false)
	defaultConfigFile  = filepath.Join(ordswapHomeDir, defaultConfigFilename)
	defaultLogDir      = filepath.Join(ordswapHomeDir, defaultLogDirname)
	defaultJournalDir  = filepath.Join(ordswapHomeDir, defaultJournalDirname)
	bitcoindCookieFile = filepath.Join(
		btcutil.AppDataDir("bitcoin", false), ".cookie",
	)
)

type config struct {
	// General application behavior
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	TestNet3    bool   `long:"testnet" description:"Use the test Bitcoin network (version 3)"`
	SigNet      bool   `long:"signet" description:"Use the signet test network"`
	RegTest     bool   `long:"regtest" description:"Use the regression test network"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical} or SUBSYS=level pairs; 'show' lists the subsystems"`
	LogDir      string `long:"logdir" description:"Directory to log output"`

	// bitcoind options
	RPCConnect   string `short:"c" long:"rpcconnect" description:"Hostname/IP and port of the bitcoind RPC server (default localhost:8332, testnet: localhost:18332, signet: localhost:38332, regtest: localhost:18443)"`
	RPCUser      string `short:"u" long:"rpcuser" description:"Username for bitcoind authentication"`
	RPCPass      string `short:"P" long:"rpcpass" default-mask:"-" description:"Password for bitcoind authentication"`
	RPCCookie    string `long:"rpccookie" description:"Path to bitcoind's .cookie file, used when no password is given"`
	SellerWallet string `long:"sellerwallet" description:"Name of the bitcoind wallet holding the inscription"`
	BuyerWallet  string `long:"buyerwallet" description:"Name of the bitcoind wallet paying for the inscription"`
	MinConf      int    `long:"minconf" description:"Confirmations an output needs to be spent"`

	// ord options
	OrdURL     string        `long:"ordurl" description:"Base URL of the ord server"`
	OrdProxy   string        `long:"ordproxy" description:"Reach the ord server through a SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	OrdRPS     int           `long:"ordrps" description:"Maximum requests per second sent to the ord server (0 for unlimited)"`
	OrdTimeout time.Duration `long:"ordtimeout" description:"Timeout of a single ord request"`

	// Trade options
	Inscription     string              `long:"inscription" description:"Id or number of the inscription to trade"`
	Price           *cfgutil.AmountFlag `long:"price" description:"Price of the inscription in BTC"`
	PayoutAddr      string              `long:"payoutaddr" description:"Address receiving the price (default: the inscription's owner)"`
	ReceiveAddr     string              `long:"receiveaddr" description:"Address receiving the inscription (default: the buyer's anchor address)"`
	PollInterval    time.Duration       `long:"pollinterval" description:"Interval between checks for a new anchor output"`
	ClassifyWorkers int                 `long:"classifyworkers" description:"Concurrent ord lookups while classifying outputs"`
	Journal         string              `long:"journal" description:"Directory of the trade journal"`
	NoJournal       bool                `long:"nojournal" description:"Do not record trades in the journal"`

	// Fee policy options
	FeeRate       int64               `long:"feerate" description:"Fee rate in sat/vB"`
	InputVSize    int                 `long:"inputvsize" description:"Estimated virtual size of an input"`
	OutputVSize   int                 `long:"outputvsize" description:"Estimated virtual size of an output"`
	OverheadVSize int                 `long:"overheadvsize" description:"Estimated virtual size of the transaction header"`
	AnchorValue   *cfgutil.AmountFlag `long:"anchorvalue" description:"Value in BTC of anchor outputs"`

	activeNet *netparams.Params
	policy    swap.FeePolicy
}

// ordConfig returns the ord client configuration.
func (c *config) ordConfig() *explorer.Config {
	return &explorer.Config{
		URL:               c.OrdURL,
		Proxy:             c.OrdProxy,
		RequestsPerSecond: c.OrdRPS,
		Timeout:           c.OrdTimeout,
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig() (*config, error) {
	policy := swap.DefaultFeePolicy()
	cfg := config{
		ConfigFile:      defaultConfigFile,
		DebugLevel:      defaultLogLevel,
		LogDir:          defaultLogDir,
		SellerWallet:    defaultSellerWallet,
		BuyerWallet:     defaultBuyerWallet,
		MinConf:         defaultMinConf,
		OrdURL:          defaultOrdURL,
		OrdTimeout:      explorer.DefaultTimeout,
		Inscription:     defaultInscription,
		Price:           cfgutil.NewAmountFlag(defaultPrice),
		PollInterval:    swap.DefaultPollInterval,
		ClassifyWorkers: swap.DefaultClassifyWorkers,
		Journal:         defaultJournalDir,
		FeeRate:         int64(policy.FeeRate),
		InputVSize:      policy.InputVSize,
		OutputVSize:     policy.OutputVSize,
		OverheadVSize:   policy.OverheadVSize,
		AnchorValue:     cfgutil.NewAmountFlag(policy.AnchorValue),
	}

	// A config file in the current directory takes precedence.
	exists, err := cfgutil.FileExists(defaultConfigFilename)
	if err != nil {
		return nil, err
	}
	if exists {
		cfg.ConfigFile = defaultConfigFilename
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err = preParser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, err
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := cfgutil.CleanAndExpandPath(preCfg.ConfigFile)
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, err
	}

	// Choose the active network params based on the selected network.
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	cfg.activeNet = &netparams.MainNetParams
	if cfg.TestNet3 {
		cfg.activeNet = &netparams.TestNet3Params
		numNets++
	}
	if cfg.SigNet {
		cfg.activeNet = &netparams.SigNetParams
		numNets++
	}
	if cfg.RegTest {
		cfg.activeNet = &netparams.RegTestParams
		numNets++
	}
	if numNets > 1 {
		return nil, errors.New("the testnet, signet and regtest params " +
			"can't be used together -- choose one")
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cfgutil.CleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.activeNet.Name)

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	err = initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		return nil, err
	}
	setLogLevels(defaultLogLevel)

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the trade and connection options and fills in the
// derived ones.
func (c *config) validate() error {
	if c.RPCConnect == "" {
		c.RPCConnect = "localhost"
	}
	rpcConnect, err := cfgutil.NormalizeAddress(
		c.RPCConnect, c.activeNet.RPCPort,
	)
	if err != nil {
		return fmt.Errorf("invalid RPC network address `%v`: %w",
			c.RPCConnect, err)
	}
	c.RPCConnect = rpcConnect

	if c.SellerWallet == "" || c.BuyerWallet == "" {
		return errors.New("seller and buyer wallet names are required")
	}
	if c.SellerWallet == c.BuyerWallet {
		return errors.New("seller and buyer wallets should not be equal")
	}
	if c.MinConf < 0 {
		return errors.New("minimum confirmations must be non-negative")
	}

	// Without a password the cookie file is used. The password is only
	// prompted for when there is no cookie either.
	if c.RPCPass == "" {
		if c.RPCCookie == "" {
			c.RPCCookie = bitcoindCookieFile
		}
		c.RPCCookie = cfgutil.CleanAndExpandPath(c.RPCCookie)
		cookieExists, err := cfgutil.FileExists(c.RPCCookie)
		if err != nil {
			return err
		}
		if !cookieExists {
			c.RPCCookie = ""
			c.RPCPass, err = prompt.Secret("bitcoind RPC password")
			if err != nil {
				return fmt.Errorf("no RPC password or cookie "+
					"file: %w", err)
			}
		}
	}
	if c.RPCCookie == "" && c.RPCUser == "" {
		return errors.New("RPC username is required")
	}

	if c.Inscription == "" {
		return errors.New("an inscription id or number is required")
	}
	if c.Price.Amount <= 0 {
		return fmt.Errorf("price `%v` must be positive", c.Price.Amount)
	}
	if c.ClassifyWorkers <= 0 {
		return errors.New("at least one classify worker is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	if !c.NoJournal {
		c.Journal = cfgutil.CleanAndExpandPath(c.Journal)
		c.Journal = filepath.Join(c.Journal, c.activeNet.Name)
	}

	c.policy = swap.DefaultFeePolicy()
	c.policy.FeeRate = btcutil.Amount(c.FeeRate)
	c.policy.InputVSize = c.InputVSize
	c.policy.OutputVSize = c.OutputVSize
	c.policy.OverheadVSize = c.OverheadVSize
	c.policy.AnchorValue = c.AnchorValue.Amount

	return c.policy.Validate()
}
