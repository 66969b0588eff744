package netparams

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestRPCPorts makes sure every network points at the bitcoind default RPC
// port and the matching chain parameters.
func TestRPCPorts(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		params Params
		name   string
		port   string
	}{
		{MainNetParams, chaincfg.MainNetParams.Name, "8332"},
		{TestNet3Params, chaincfg.TestNet3Params.Name, "18332"},
		{SigNetParams, chaincfg.SigNetParams.Name, "38332"},
		{RegTestParams, chaincfg.RegressionNetParams.Name, "18443"},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.name, tc.params.Name)
		require.Equal(t, tc.port, tc.params.RPCPort)
	}
}
