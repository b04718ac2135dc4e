package storage

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
)

type accounts struct{ r *Repository }

func (a accounts) GetAccount(address string) (*core.AccountData, error) {
	var acc core.AccountData
	err := a.r.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.AccountData{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (a accounts) SaveAccount(acc *core.AccountData) error {
	if len(acc.PublicKey) == 0 && len(acc.LastReference) == 0 {
		a.r.del(prefixAccount + acc.Address)
		return nil
	}
	return a.r.putJSON(prefixAccount+acc.Address, acc)
}

func (a accounts) GetLastReference(address string) ([]byte, error) {
	acc, err := a.GetAccount(address)
	if err != nil {
		return nil, err
	}
	return acc.LastReference, nil
}

func (a accounts) SetLastReference(address string, ref []byte) error {
	acc, err := a.GetAccount(address)
	if err != nil {
		return err
	}
	acc.LastReference = ref
	return a.SaveAccount(acc)
}

func (a accounts) GetBalance(address string, assetID int64) (decimal.Decimal, error) {
	data, err := a.r.get(balanceKey(address, assetID))
	if errors.Is(err, core.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return decimal.Zero, core.WrapData("decode balance", err)
	}
	return d, nil
}

// SetBalance drops the row for a zero amount so an orphaned credit leaves no
// trace behind.
func (a accounts) SetBalance(address string, assetID int64, amount decimal.Decimal) error {
	if amount.IsZero() {
		a.r.del(balanceKey(address, assetID))
		return nil
	}
	a.r.set(balanceKey(address, assetID), []byte(amount.String()))
	return nil
}

func (a accounts) DeleteBalance(address string, assetID int64) error {
	a.r.del(balanceKey(address, assetID))
	return nil
}

func (a accounts) GetAssetBalances(assetID int64) ([]*core.AccountBalanceData, error) {
	keys, vals, err := a.r.scan(prefixBalance)
	if err != nil {
		return nil, err
	}
	var out []*core.AccountBalanceData
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefixBalance)
		sep := strings.LastIndexByte(rest, ':')
		if sep < 0 {
			continue
		}
		id, err := strconv.ParseInt(rest[sep+1:], 10, 64)
		if err != nil || id != assetID {
			continue
		}
		bal, err := decimal.NewFromString(string(vals[k]))
		if err != nil {
			return nil, core.WrapData("decode balance", err)
		}
		out = append(out, &core.AccountBalanceData{Address: rest[:sep], AssetID: id, Balance: bal})
	}
	return out, nil
}
