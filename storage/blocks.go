package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/tolelom/qorachain/core"
)

type blocks struct{ r *Repository }

func (b blocks) FromSignature(signature []byte) (*core.BlockData, error) {
	var block core.BlockData
	if err := b.r.getJSON(prefixBlock+hx(signature), &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (b blocks) FromHeight(height int) (*core.BlockData, error) {
	sig, err := b.r.get(heightKey(height))
	if err != nil {
		return nil, err
	}
	var block core.BlockData
	if err := b.r.getJSON(prefixBlock+string(sig), &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (b blocks) GetBlockchainHeight() (int, error) {
	data, err := b.r.get(keyChainHeight)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	h, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, core.WrapData("decode chain height", err)
	}
	return h, nil
}

func (b blocks) GetLastBlock() (*core.BlockData, error) {
	h, err := b.GetBlockchainHeight()
	if err != nil {
		return nil, err
	}
	if h == 0 {
		return nil, core.ErrNotFound
	}
	return b.FromHeight(h)
}

func (b blocks) GetTransactionsFromSignature(blockSignature []byte) ([]*core.TransactionData, error) {
	keys, vals, err := b.r.scan(prefixBlockTx + hx(blockSignature) + ":")
	if err != nil {
		return nil, err
	}
	txs := make([]*core.TransactionData, 0, len(keys))
	for _, k := range keys {
		var tx core.TransactionData
		if err := b.r.getJSON(prefixTx+string(vals[k]), &tx); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}

func (b blocks) Save(block *core.BlockData) error {
	current, err := b.GetBlockchainHeight()
	if err != nil {
		return err
	}
	if block.Height != current+1 {
		return core.WrapData("save block", fmt.Errorf("height %d does not follow tip %d", block.Height, current))
	}
	sig := block.SignatureHex()
	if err := b.r.putJSON(prefixBlock+sig, block); err != nil {
		return err
	}
	b.r.set(heightKey(block.Height), []byte(sig))
	b.r.set(keyChainHeight, []byte(strconv.Itoa(block.Height)))
	return nil
}

func (b blocks) Delete(block *core.BlockData) error {
	current, err := b.GetBlockchainHeight()
	if err != nil {
		return err
	}
	if block.Height != current {
		return core.WrapData("delete block", fmt.Errorf("block %d is not the tip %d", block.Height, current))
	}
	b.r.del(prefixBlock + block.SignatureHex())
	b.r.del(heightKey(block.Height))
	if block.Height <= 1 {
		b.r.del(keyChainHeight)
	} else {
		b.r.set(keyChainHeight, []byte(strconv.Itoa(block.Height-1)))
	}
	return nil
}

func (b blocks) SaveTransaction(link *core.BlockTransactionData) error {
	txSig := hx(link.TransactionSignature)
	b.r.set(blockTxKey(link.BlockSignature, link.Sequence), []byte(txSig))
	b.r.set(prefixTxBlock+txSig, []byte(hx(link.BlockSignature)))
	return nil
}

func (b blocks) DeleteTransactions(blockSignature []byte) error {
	keys, vals, err := b.r.scan(prefixBlockTx + hx(blockSignature) + ":")
	if err != nil {
		return err
	}
	for _, k := range keys {
		b.r.del(prefixTxBlock + string(vals[k]))
		b.r.del(k)
	}
	return nil
}

func decodeHexValue(op string, data []byte) ([]byte, error) {
	out, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, core.WrapData(op, err)
	}
	return out, nil
}
