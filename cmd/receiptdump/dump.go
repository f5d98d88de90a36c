package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/morph-l2/chaindb-reader/reader"
	"github.com/morph-l2/chaindb-reader/receipts"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// blockReceipts is the output record of one block.
type blockReceipts struct {
	Hash     common.Hash         `json:"blockHash"`
	Receipts []*receipts.Receipt `json:"receipts"`

	err error
}

type dumper struct {
	reader   *reader.Reader
	db       string
	parallel int
	format   string
	bar      *progressbar.ProgressBar
}

// parseHashes decodes block hashes given on the command line.
func parseHashes(args []string) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(args))
	for _, arg := range args {
		b, err := hexutil.Decode(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid block hash %q: %v", arg, err)
		}
		if len(b) != common.HashLength {
			return nil, fmt.Errorf("invalid block hash %q: want %d bytes, have %d", arg, common.HashLength, len(b))
		}
		hashes = append(hashes, common.BytesToHash(b))
	}
	return hashes, nil
}

func newProgressBar(n int, visible bool) *progressbar.ProgressBar {
	w := io.Writer(os.Stderr)
	if !visible {
		w = io.Discard
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Reading blocks"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

// dump reads the receipts of every block and writes them to w in the order the
// hashes were given. Blocks that cannot be read are logged and counted, they
// do not stop the others.
func (d *dumper) dump(w io.Writer, hashes []common.Hash) (int, error) {
	results := make([]blockReceipts, len(hashes))

	var g errgroup.Group
	if d.parallel > 0 {
		g.SetLimit(d.parallel)
	}
	for i, hash := range hashes {
		i, hash := i, hash
		g.Go(func() error {
			hydrated, err := d.reader.ReadReceipts(hash, d.db)
			results[i] = blockReceipts{Hash: hash, Receipts: hydrated, err: err}
			d.bar.Add(1)
			return nil
		})
	}
	g.Wait()

	var (
		ok     []blockReceipts
		failed int
	)
	for _, res := range results {
		if res.err != nil {
			log.Error("Failed to read block receipts", "hash", res.Hash, "err", res.err)
			failed++
			continue
		}
		ok = append(ok, res)
	}
	switch d.format {
	case formatJSON, "":
		return failed, writeJSON(w, ok)
	case formatTable:
		writeTable(w, ok)
		return failed, nil
	default:
		return failed, fmt.Errorf("unknown output format %q", d.format)
	}
}

func writeJSON(w io.Writer, blocks []blockReceipts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, block := range blocks {
		if err := enc.Encode(block); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, blocks []blockReceipts) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Block", "Index", "Transaction", "From", "To", "Gas used", "Status", "Logs"})
	for _, block := range blocks {
		for _, r := range block.Receipts {
			table.Append([]string{
				strconv.FormatUint(uint64(r.BlockNumber), 10),
				strconv.FormatUint(uint64(r.TxIndex), 10),
				r.TxHash.Hex(),
				r.From.Hex(),
				recipient(r),
				strconv.FormatUint(uint64(r.GasUsed), 10),
				status(r),
				strconv.Itoa(len(r.Logs)),
			})
		}
	}
	table.Render()
}

func recipient(r *receipts.Receipt) string {
	if r.ContractAddress != nil {
		return "create " + r.ContractAddress.Hex()
	}
	if r.To != nil {
		return r.To.Hex()
	}
	return ""
}

func status(r *receipts.Receipt) string {
	switch {
	case r.Status == nil:
		return "root"
	case r.Succeeded():
		return "ok"
	default:
		return "failed"
	}
}
