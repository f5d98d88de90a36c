package receipts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransactionPosition locates a transaction inside its block. One is derived
// per transaction from the block header, see PositionsFor.
type TransactionPosition struct {
	TxHash      common.Hash
	Index       uint64
	BlockHash   common.Hash
	BlockNumber uint64
	BaseFee     *big.Int // nil before London

	// ExcessBlobGas is nil before Cancun. It travels with the position but no
	// receipt field is derived from it.
	ExcessBlobGas *uint64
}

// Receipt is a transaction receipt hydrated with its block and transaction
// context, encoded the same way eth_getTransactionReceipt encodes it.
//
// To and ContractAddress are mutually exclusive: a call sets To, a contract
// creation sets ContractAddress. Status is nil for receipts stored with a
// post-state root. Root and the blob gas fields are never derived by this
// package and stay empty.
type Receipt struct {
	TxHash            common.Hash     `json:"transactionHash"`
	TxIndex           hexutil.Uint64  `json:"transactionIndex"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	ContractAddress   *common.Address `json:"contractAddress"`
	Logs              []*types.Log    `json:"logs"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Type              hexutil.Uint64  `json:"type"`
	Root              hexutil.Bytes   `json:"root,omitempty"`
	Bloom             types.Bloom     `json:"logsBloom"`
	Status            *hexutil.Uint64 `json:"status,omitempty"`

	// EIP-4844
	BlobGasUsed  *hexutil.Uint64 `json:"blobGasUsed,omitempty"`
	BlobGasPrice *hexutil.Big    `json:"blobGasPrice,omitempty"`
}

// Succeeded reports whether the receipt carries a successful status.
func (r *Receipt) Succeeded() bool {
	return r.Status != nil && uint64(*r.Status) == types.ReceiptStatusSuccessful
}
