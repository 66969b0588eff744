// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import "github.com/btcsuite/btcd/chaincfg"

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params

	// RPCPort is the default port of the bitcoind JSON-RPC server on
	// this network.
	RPCPort string
}

// MainNetParams contains parameters specific to running against bitcoind on
// the main network (wire.MainNet).
var MainNetParams = Params{
	Params:  &chaincfg.MainNetParams,
	RPCPort: "8332",
}

// TestNet3Params contains parameters specific to running against bitcoind on
// the test network (version 3) (wire.TestNet3).
var TestNet3Params = Params{
	Params:  &chaincfg.TestNet3Params,
	RPCPort: "18332",
}

// SigNetParams contains parameters specific to the default public signet
// (wire.SigNet).
var SigNetParams = Params{
	Params:  &chaincfg.SigNetParams,
	RPCPort: "38332",
}

// RegTestParams contains parameters specific to the regression test network
// (wire.TestNet).
var RegTestParams = Params{
	Params:  &chaincfg.RegressionNetParams,
	RPCPort: "18443",
}
