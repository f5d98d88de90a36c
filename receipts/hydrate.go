// Package receipts turns the raw receipts stored in a chain database into the
// receipts served over JSON-RPC.
//
// Raw receipts only keep the consensus fields (status, cumulative gas used and
// logs). Everything else, sender, recipient, created contract, per transaction
// gas, block scoped log indices and the effective gas price, is derived from the
// block the receipts belong to.
package receipts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

var (
	// ErrSenderRecovery is returned if the signer of a transaction cannot be
	// recovered from its signature.
	ErrSenderRecovery = errors.New("sender recovery failed")

	// ErrReceiptCountMismatch is returned if a block and its receipt list do
	// not have the same length.
	ErrReceiptCountMismatch = errors.New("transaction and receipt count mismatch")
)

// Hydrate builds the RPC receipt of tx from its raw receipt. all is the full
// raw receipt list of the block, in transaction order, and receipt must be
// all[pos.Index].
//
// A transaction whose sender cannot be recovered yields ErrSenderRecovery. The
// caller has to treat that as a failure of the whole block.
func Hydrate(signer types.Signer, tx *types.Transaction, pos TransactionPosition, receipt *types.Receipt, all types.Receipts) (*Receipt, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: tx %s: %v", ErrSenderRecovery, pos.TxHash.Hex(), err)
	}
	// Receipts stored with a post-state root predate the status field, their
	// outcome is unknown.
	var status *hexutil.Uint64
	if len(receipt.PostState) == 0 {
		s := hexutil.Uint64(types.ReceiptStatusFailed)
		if receipt.Status == types.ReceiptStatusSuccessful {
			s = hexutil.Uint64(types.ReceiptStatusSuccessful)
		}
		status = &s
	}
	res := &Receipt{
		TxHash:            pos.TxHash,
		TxIndex:           hexutil.Uint64(pos.Index),
		BlockHash:         pos.BlockHash,
		BlockNumber:       hexutil.Uint64(pos.BlockNumber),
		From:              from,
		CumulativeGasUsed: hexutil.Uint64(receipt.CumulativeGasUsed),
		GasUsed:           hexutil.Uint64(gasUsed(pos.Index, receipt, all)),
		Logs:              make([]*types.Log, 0, len(receipt.Logs)),
		EffectiveGasPrice: (*hexutil.Big)(effectiveGasPrice(tx, pos.BaseFee)),
		Type:              hexutil.Uint64(tx.Type()),
		Bloom:             types.CreateBloom(types.Receipts{receipt}),
		Status:            status,
	}
	if to := tx.To(); to != nil {
		addr := *to
		res.To = &addr
	} else {
		addr := crypto.CreateAddress(from, tx.Nonce())
		res.ContractAddress = &addr
	}

	first := logOffset(pos.Index, all)
	for i, l := range receipt.Logs {
		res.Logs = append(res.Logs, &types.Log{
			Address:     l.Address,
			Topics:      l.Topics,
			Data:        l.Data,
			BlockNumber: pos.BlockNumber,
			TxHash:      pos.TxHash,
			TxIndex:     uint(pos.Index),
			BlockHash:   pos.BlockHash,
			Index:       first + uint(i),
		})
	}
	return res, nil
}

// gasUsed returns the gas consumed by the transaction at index alone.
//
// A previous receipt missing from all counts as zero gas used rather than an
// error, and a cumulative total lower than the previous one wraps around.
// Stricter validation would surface corrupt receipt lists in both cases.
func gasUsed(index uint64, receipt *types.Receipt, all types.Receipts) uint64 {
	if index == 0 {
		return receipt.CumulativeGasUsed
	}
	if prev := index - 1; prev < uint64(len(all)) {
		return receipt.CumulativeGasUsed - all[prev].CumulativeGasUsed
	}
	return 0
}

// logOffset returns the block scoped index of the first log emitted by the
// transaction at index.
func logOffset(index uint64, all types.Receipts) uint {
	var n uint
	for i := 0; uint64(i) < index && i < len(all); i++ {
		n += uint(len(all[i].Logs))
	}
	return n
}

// effectiveGasPrice returns the price per gas actually paid by tx. Without a
// base fee that is the legacy gas price, otherwise min(feeCap, baseFee+tipCap).
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tx.GasPrice())
	}
	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if feeCap := tx.GasFeeCap(); price.Cmp(feeCap) > 0 {
		price.Set(feeCap)
	}
	return price
}

// PositionsFor derives the position of every transaction in block. The block
// hash is recomputed from the header instead of being taken from the caller.
func PositionsFor(block *types.Block) []TransactionPosition {
	var (
		hash      = block.Hash()
		number    = block.NumberU64()
		baseFee   = block.BaseFee()
		excessGas = block.ExcessBlobGas()
		txs       = block.Transactions()
	)
	positions := make([]TransactionPosition, len(txs))
	for i, tx := range txs {
		positions[i] = TransactionPosition{
			TxHash:        tx.Hash(),
			Index:         uint64(i),
			BlockHash:     hash,
			BlockNumber:   number,
			BaseFee:       baseFee,
			ExcessBlobGas: excessGas,
		}
	}
	return positions
}

// HydrateBlock hydrates the raw receipts of every transaction in block. The
// block is hydrated in full or not at all: the first transaction that fails
// aborts the whole block.
func HydrateBlock(config *params.ChainConfig, block *types.Block, raw types.Receipts) ([]*Receipt, error) {
	txs := block.Transactions()
	if len(txs) != len(raw) {
		return nil, fmt.Errorf("%w: %d transactions, %d receipts", ErrReceiptCountMismatch, len(txs), len(raw))
	}
	var (
		signer    = types.MakeSigner(config, block.Number(), block.Time())
		positions = PositionsFor(block)
		hydrated  = make([]*Receipt, 0, len(txs))
	)
	for i, tx := range txs {
		receipt, err := Hydrate(signer, tx, positions[i], raw[i], raw)
		if err != nil {
			return nil, err
		}
		hydrated = append(hydrated, receipt)
	}
	return hydrated, nil
}

// BlockLogs flattens the logs of hydrated receipts in block order.
func BlockLogs(hydrated []*Receipt) []*types.Log {
	var logs []*types.Log
	for _, r := range hydrated {
		logs = append(logs, r.Logs...)
	}
	return logs
}
