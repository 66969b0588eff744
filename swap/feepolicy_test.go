package swap

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestDefaultFees checks the fee figures of the default policy.
func TestDefaultFees(t *testing.T) {
	t.Parallel()

	p := DefaultFeePolicy()
	require.NoError(t, p.Validate())

	require.Equal(t, btcutil.Amount(258), p.SplitFee())
	require.Equal(t, btcutil.Amount(472), p.PurchaseFee())
	require.Equal(t, btcutil.Amount(12_340+1_472),
		p.RequiredPayment(12_340))

	p.FeeRate = 3
	require.Equal(t, btcutil.Amount(3*258), p.SplitFee())
	require.Equal(t, btcutil.Amount(12_340+1_000+3*472),
		p.RequiredPayment(12_340))
}

// TestFeePolicyValidate checks that unusable policies are rejected.
func TestFeePolicyValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		modify func(*FeePolicy)
	}{
		{
			name:   "zero fee rate",
			modify: func(p *FeePolicy) { p.FeeRate = 0 },
		},
		{
			name:   "negative input size",
			modify: func(p *FeePolicy) { p.InputVSize = -1 },
		},
		{
			name:   "zero output size",
			modify: func(p *FeePolicy) { p.OutputVSize = 0 },
		},
		{
			name:   "no purchase inputs",
			modify: func(p *FeePolicy) { p.PurchaseInputs = 0 },
		},
		{
			name:   "dust anchor",
			modify: func(p *FeePolicy) { p.AnchorValue = 100 },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := DefaultFeePolicy()
			tc.modify(&p)
			require.True(t, IsKind(p.Validate(), ErrInvalidPolicy))
		})
	}
}

// TestWorstCaseVSize checks that input script types are taken into account.
func TestWorstCaseVSize(t *testing.T) {
	t.Parallel()

	p2wpkh := append([]byte{0x00, 0x14}, make([]byte, 20)...)
	p2pkh := append(
		append([]byte{0x76, 0xa9, 0x14}, make([]byte, 20)...),
		0x88, 0xac,
	)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{})
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 1}})
	tx.AddTxOut(wire.NewTxOut(1000, p2wpkh))

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(5000, p2wpkh)
	allSegwit := WorstCaseVSize(packet)

	packet.Inputs[0].WitnessUtxo = nil
	packet.Inputs[0].NonWitnessUtxo = &wire.MsgTx{
		TxOut: []*wire.TxOut{wire.NewTxOut(5000, p2pkh)},
	}
	legacy := WorstCaseVSize(packet)

	require.Positive(t, allSegwit)
	require.Greater(t, legacy, allSegwit)
}
