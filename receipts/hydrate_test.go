package receipts

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey, _  = crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	testAddr    = crypto.PubkeyToAddress(testKey.PublicKey)
	testConfig  = params.TestChainConfig
	testSigner  = types.LatestSigner(testConfig)
	testBaseFee = big.NewInt(params.GWei)

	callTarget = common.HexToAddress("0x4ce63f351597214ef0b9a319124eea9e0f9668bb")
	testTopics = []common.Hash{
		common.HexToHash("0x0cdbd8bd7813095001c5fe7917bd69d834dc01db7c1dfcf52ca135bd20384413"),
		common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000c2"),
	}
)

func signTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, to *common.Address) *types.Transaction {
	t.Helper()

	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   testConfig.ChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(2 * params.GWei),
		GasFeeCap: big.NewInt(100 * params.GWei),
		Gas:       1_000_000,
		To:        to,
		Value:     big.NewInt(1),
	}), testSigner, key)
	require.NoError(t, err)
	return tx
}

// unsignedTx carries an all-zero signature, which no signer can recover.
func unsignedTx(t *testing.T, nonce uint64) *types.Transaction {
	t.Helper()

	tx, err := types.NewTx(&types.DynamicFeeTx{
		ChainID:   testConfig.ChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(2 * params.GWei),
		GasFeeCap: big.NewInt(100 * params.GWei),
		Gas:       21000,
		To:        &callTarget,
	}).WithSignature(testSigner, make([]byte, crypto.SignatureLength))
	require.NoError(t, err)
	return tx
}

func newBlock(txs []*types.Transaction) *types.Block {
	header := &types.Header{
		Number:     big.NewInt(9_942_861),
		Time:       1_700_000_000,
		GasLimit:   30_000_000,
		BaseFee:    testBaseFee,
		Difficulty: common.Big0,
	}
	return types.NewBlockWithHeader(header).WithBody(txs, nil)
}

func newReceipt(cumulativeGas uint64, logs int) *types.Receipt {
	r := &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: cumulativeGas,
	}
	for i := 0; i < logs; i++ {
		r.Logs = append(r.Logs, &types.Log{
			Address: callTarget,
			Topics:  testTopics,
			Data:    []byte{byte(i)},
		})
	}
	return r
}

func TestHydrateSingleCall(t *testing.T) {
	tx := signTx(t, testKey, 0, &callTarget)
	block := newBlock([]*types.Transaction{tx})
	raw := types.Receipts{{
		Type:              types.DynamicFeeTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 0x3aefc,
		Logs:              []*types.Log{{Address: callTarget, Topics: testTopics}},
	}}

	hydrated, err := HydrateBlock(testConfig, block, raw)
	require.NoError(t, err)
	require.Len(t, hydrated, 1)

	r := hydrated[0]
	assert.Equal(t, tx.Hash(), r.TxHash)
	assert.Equal(t, block.Hash(), r.BlockHash)
	assert.Equal(t, hexutil.Uint64(9_942_861), r.BlockNumber)
	assert.Equal(t, hexutil.Uint64(0), r.TxIndex)
	assert.Equal(t, testAddr, r.From)
	assert.Equal(t, &callTarget, r.To)
	assert.Nil(t, r.ContractAddress)
	assert.Equal(t, hexutil.Uint64(0x3aefc), r.CumulativeGasUsed)
	assert.Equal(t, hexutil.Uint64(0x3aefc), r.GasUsed)
	assert.Equal(t, hexutil.Uint64(types.DynamicFeeTxType), r.Type)
	assert.True(t, r.Succeeded())
	assert.Nil(t, r.Root)
	assert.Nil(t, r.BlobGasUsed)
	assert.Nil(t, r.BlobGasPrice)

	// base fee 1 gwei plus a 2 gwei tip, well under the fee cap
	assert.Equal(t, big.NewInt(3*params.GWei), r.EffectiveGasPrice.ToInt())

	require.Len(t, r.Logs, 1)
	l := r.Logs[0]
	assert.Equal(t, callTarget, l.Address)
	assert.Equal(t, testTopics, l.Topics)
	assert.Equal(t, uint(0), l.Index)
	assert.Equal(t, uint(0), l.TxIndex)
	assert.Equal(t, tx.Hash(), l.TxHash)
	assert.Equal(t, block.Hash(), l.BlockHash)
	assert.Equal(t, uint64(9_942_861), l.BlockNumber)
	assert.False(t, l.Removed)

	assert.True(t, r.Bloom.Test(callTarget.Bytes()))
	assert.True(t, r.Bloom.Test(testTopics[0].Bytes()))
	assert.True(t, r.Bloom.Test(testTopics[1].Bytes()))
	assert.Equal(t, types.CreateBloom(raw), r.Bloom)
}

func TestHydrateFailedStatus(t *testing.T) {
	tx := signTx(t, testKey, 0, &callTarget)
	raw := types.Receipts{{Status: types.ReceiptStatusFailed, CumulativeGasUsed: 21000}}

	hydrated, err := HydrateBlock(testConfig, newBlock([]*types.Transaction{tx}), raw)
	require.NoError(t, err)
	require.NotNil(t, hydrated[0].Status)
	assert.Equal(t, hexutil.Uint64(0), *hydrated[0].Status)
	assert.False(t, hydrated[0].Succeeded())
}

func TestHydratePostStateReceipt(t *testing.T) {
	tx, err := types.SignNewTx(testKey, types.HomesteadSigner{}, &types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(20 * params.GWei),
		Gas:      21000,
		To:       &callTarget,
	})
	require.NoError(t, err)
	header := &types.Header{
		Number:     big.NewInt(1_000_000),
		Time:       1_455_404_053,
		GasLimit:   3_141_592,
		Difficulty: big.NewInt(1),
	}
	block := types.NewBlockWithHeader(header).WithBody([]*types.Transaction{tx}, nil)
	raw := types.Receipts{{
		PostState:         common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa").Bytes(),
		CumulativeGasUsed: 21000,
	}}

	hydrated, err := HydrateBlock(params.MainnetChainConfig, block, raw)
	require.NoError(t, err)
	r := hydrated[0]
	assert.Nil(t, r.Status)
	assert.False(t, r.Succeeded())
	assert.Empty(t, r.Root)
	assert.Equal(t, testAddr, r.From)
	assert.Equal(t, hexutil.Uint64(21000), r.GasUsed)
	assert.Equal(t, big.NewInt(20*params.GWei), r.EffectiveGasPrice.ToInt())

	enc, err := json.Marshal(r)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(enc, &fields))
	assert.NotContains(t, fields, "status")
	assert.NotContains(t, fields, "root")
}

func TestHydrateBlockAccounting(t *testing.T) {
	var (
		logCounts  = []int{2, 0, 3, 1}
		cumulative = []uint64{21000, 42000, 150000, 171000}
		txs        []*types.Transaction
		raw        types.Receipts
	)
	for i := range logCounts {
		txs = append(txs, signTx(t, testKey, uint64(i), &callTarget))
		raw = append(raw, newReceipt(cumulative[i], logCounts[i]))
	}
	hydrated, err := HydrateBlock(testConfig, newBlock(txs), raw)
	require.NoError(t, err)
	require.Len(t, hydrated, len(txs))

	for i, r := range hydrated {
		assert.Equal(t, hexutil.Uint64(i), r.TxIndex, "tx %d index", i)
		assert.Equal(t, txs[i].Hash(), r.TxHash, "tx %d hash", i)

		want := raw[i].CumulativeGasUsed
		if i > 0 {
			want -= raw[i-1].CumulativeGasUsed
		}
		assert.Equal(t, hexutil.Uint64(want), r.GasUsed, "tx %d gas used", i)
		assert.Len(t, r.Logs, logCounts[i])
		for _, l := range r.Logs {
			assert.Equal(t, uint(i), l.TxIndex)
		}
	}
	logs := BlockLogs(hydrated)
	require.Len(t, logs, 6)
	for i, l := range logs {
		assert.Equal(t, uint(i), l.Index, "block log %d", i)
	}
	// per transaction order of the data payloads survives
	assert.Equal(t, []byte{0}, logs[2].Data)
	assert.Equal(t, []byte{2}, logs[4].Data)
}

func TestHydrateContractCreation(t *testing.T) {
	const nonce = 7
	tx := signTx(t, testKey, nonce, nil)
	hydrated, err := HydrateBlock(testConfig, newBlock([]*types.Transaction{tx}), types.Receipts{newReceipt(53000, 0)})
	require.NoError(t, err)

	r := hydrated[0]
	assert.Nil(t, r.To)
	require.NotNil(t, r.ContractAddress)
	assert.Equal(t, crypto.CreateAddress(testAddr, nonce), *r.ContractAddress)
	assert.Empty(t, r.Logs)
}

func TestCallCreationExclusive(t *testing.T) {
	txs := []*types.Transaction{
		signTx(t, testKey, 0, &callTarget),
		signTx(t, testKey, 1, nil),
		signTx(t, testKey, 2, &testAddr),
	}
	raw := types.Receipts{newReceipt(1, 0), newReceipt(2, 1), newReceipt(3, 0)}

	hydrated, err := HydrateBlock(testConfig, newBlock(txs), raw)
	require.NoError(t, err)
	for i, r := range hydrated {
		if (r.To == nil) == (r.ContractAddress == nil) {
			t.Fatalf("receipt %d: to %v, contract address %v", i, r.To, r.ContractAddress)
		}
	}
}

func TestHydrateUnrecoverableSender(t *testing.T) {
	txs := []*types.Transaction{
		signTx(t, testKey, 0, &callTarget),
		unsignedTx(t, 1),
		signTx(t, testKey, 2, &callTarget),
	}
	raw := types.Receipts{newReceipt(21000, 1), newReceipt(42000, 1), newReceipt(63000, 1)}

	hydrated, err := HydrateBlock(testConfig, newBlock(txs), raw)
	require.ErrorIs(t, err, ErrSenderRecovery)
	assert.Nil(t, hydrated)

	positions := PositionsFor(newBlock(txs))
	_, err = Hydrate(testSigner, txs[1], positions[1], raw[1], raw)
	assert.True(t, errors.Is(err, ErrSenderRecovery))
}

func TestHydrateBlockCountMismatch(t *testing.T) {
	txs := []*types.Transaction{signTx(t, testKey, 0, &callTarget), signTx(t, testKey, 1, &callTarget)}

	_, err := HydrateBlock(testConfig, newBlock(txs), types.Receipts{newReceipt(21000, 0)})
	require.ErrorIs(t, err, ErrReceiptCountMismatch)
}

func TestGasUsedMissingPrevious(t *testing.T) {
	tx := signTx(t, testKey, 0, &callTarget)
	receipt := newReceipt(90000, 0)
	pos := TransactionPosition{TxHash: tx.Hash(), Index: 3, BaseFee: testBaseFee}

	r, err := Hydrate(testSigner, tx, pos, receipt, types.Receipts{receipt})
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(0), r.GasUsed)
	assert.Equal(t, hexutil.Uint64(90000), r.CumulativeGasUsed)
}

func TestGasUsedDecreasingCumulative(t *testing.T) {
	var prev, cur uint64 = 50000, 21000
	all := types.Receipts{newReceipt(prev, 0), newReceipt(cur, 0)}
	assert.Equal(t, cur-prev, gasUsed(1, all[1], all))
}

func TestPositionsFor(t *testing.T) {
	txs := []*types.Transaction{signTx(t, testKey, 0, &callTarget), signTx(t, testKey, 1, nil)}
	excess := uint64(0x20000)
	header := &types.Header{
		Number:        big.NewInt(19_426_587),
		BaseFee:       testBaseFee,
		Difficulty:    common.Big0,
		ExcessBlobGas: &excess,
	}
	block := types.NewBlockWithHeader(header).WithBody(txs, nil)

	positions := PositionsFor(block)
	require.Len(t, positions, 2)
	for i, pos := range positions {
		assert.Equal(t, txs[i].Hash(), pos.TxHash)
		assert.Equal(t, uint64(i), pos.Index)
		assert.Equal(t, block.Hash(), pos.BlockHash)
		assert.Equal(t, uint64(19_426_587), pos.BlockNumber)
		assert.Equal(t, testBaseFee, pos.BaseFee)
		require.NotNil(t, pos.ExcessBlobGas)
		assert.Equal(t, excess, *pos.ExcessBlobGas)
	}
	assert.Nil(t, PositionsFor(newBlock(txs))[0].ExcessBlobGas)
}

func TestEffectiveGasPrice(t *testing.T) {
	legacy := types.NewTx(&types.LegacyTx{GasPrice: big.NewInt(50)})
	dynamic := types.NewTx(&types.DynamicFeeTx{GasTipCap: big.NewInt(5), GasFeeCap: big.NewInt(30)})

	tests := []struct {
		tx      *types.Transaction
		baseFee *big.Int
		want    int64
	}{
		{legacy, nil, 50},
		{legacy, big.NewInt(10), 50},
		{dynamic, nil, 30},
		{dynamic, big.NewInt(10), 15},
		{dynamic, big.NewInt(28), 30},
	}
	for i, test := range tests {
		if got := effectiveGasPrice(test.tx, test.baseFee); got.Int64() != test.want {
			t.Errorf("test %d: effective gas price mismatch: have %v, want %d", i, got, test.want)
		}
	}
}

func TestReceiptJSONRoundTrip(t *testing.T) {
	txs := []*types.Transaction{
		signTx(t, testKey, 0, &callTarget),
		signTx(t, testKey, 1, nil),
	}
	raw := types.Receipts{newReceipt(30000, 2), {Status: types.ReceiptStatusFailed, CumulativeGasUsed: 90000}}
	hydrated, err := HydrateBlock(testConfig, newBlock(txs), raw)
	require.NoError(t, err)

	enc, err := json.Marshal(hydrated)
	require.NoError(t, err)

	var dec []*Receipt
	require.NoError(t, json.Unmarshal(enc, &dec))

	opts := cmp.Options{
		cmpopts.EquateEmpty(),
		cmp.Comparer(func(a, b *hexutil.Big) bool {
			if a == nil || b == nil {
				return a == b
			}
			return a.ToInt().Cmp(b.ToInt()) == 0
		}),
	}
	if diff := cmp.Diff(hydrated, dec, opts); diff != "" {
		t.Fatalf("receipts changed across encoding (-want +got):\n%s", diff)
	}
}

func TestReceiptJSONFields(t *testing.T) {
	tx := signTx(t, testKey, 0, nil)
	hydrated, err := HydrateBlock(testConfig, newBlock([]*types.Transaction{tx}), types.Receipts{newReceipt(0x3aefc, 1)})
	require.NoError(t, err)

	enc, err := json.Marshal(hydrated[0])
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(enc, &fields))

	assert.Contains(t, fields, "to")
	assert.Nil(t, fields["to"])
	assert.Equal(t, "0x3aefc", fields["gasUsed"])
	assert.Equal(t, "0x1", fields["status"])
	assert.Equal(t, "0x2", fields["type"])
	assert.NotContains(t, fields, "root")
	assert.NotContains(t, fields, "blobGasUsed")
	assert.NotContains(t, fields, "blobGasPrice")

	logs := fields["logs"].([]interface{})
	require.Len(t, logs, 1)
	assert.Equal(t, "0x0", logs[0].(map[string]interface{})["logIndex"])
	assert.Equal(t, false, logs[0].(map[string]interface{})["removed"])
}
