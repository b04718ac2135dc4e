package storage

import (
	"strings"

	"github.com/tolelom/qorachain/core"
)

type transactions struct{ r *Repository }

func (t transactions) FromSignature(signature []byte) (*core.TransactionData, error) {
	var tx core.TransactionData
	if err := t.r.getJSON(prefixTx+hx(signature), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (t transactions) GetBlockSignature(signature []byte) ([]byte, error) {
	data, err := t.r.get(prefixTxBlock + hx(signature))
	if err != nil {
		return nil, err
	}
	return decodeHexValue("decode block signature", data)
}

func (t transactions) Save(tx *core.TransactionData) error {
	return t.r.putJSON(prefixTx+tx.SignatureHex(), tx)
}

func (t transactions) Delete(tx *core.TransactionData) error {
	t.r.del(prefixTx + tx.SignatureHex())
	return nil
}

func (t transactions) SaveParticipants(signature []byte, addresses []string) error {
	sig := hx(signature)
	if err := t.r.putJSON(prefixTxParts+sig, addresses); err != nil {
		return err
	}
	for _, addr := range addresses {
		t.r.set(prefixAccountTx+addr+":"+sig, nil)
	}
	return nil
}

func (t transactions) DeleteParticipants(signature []byte) error {
	sig := hx(signature)
	var addresses []string
	if err := t.r.getJSON(prefixTxParts+sig, &addresses); err != nil {
		return err
	}
	for _, addr := range addresses {
		t.r.del(prefixAccountTx + addr + ":" + sig)
	}
	t.r.del(prefixTxParts + sig)
	return nil
}

func (t transactions) GetSignaturesInvolving(address string) ([][]byte, error) {
	prefix := prefixAccountTx + address + ":"
	keys, _, err := t.r.scan(prefix)
	if err != nil {
		return nil, err
	}
	sigs := make([][]byte, 0, len(keys))
	for _, k := range keys {
		sig, err := decodeHexValue("decode participant signature", []byte(strings.TrimPrefix(k, prefix)))
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
