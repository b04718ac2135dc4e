package storage

import (
	"bytes"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/tolelom/qorachain/core"
)

type assets struct{ r *Repository }

// ---- Assets ----

func (a assets) FromAssetID(assetID int64) (*core.AssetData, error) {
	var asset core.AssetData
	if err := a.r.getJSON(assetKey(assetID), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (a assets) FromAssetReference(reference []byte) (*core.AssetData, error) {
	data, err := a.r.get(prefixAssetRef + hx(reference))
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return nil, core.WrapData("decode asset reference", err)
	}
	return a.FromAssetID(id)
}

func (a assets) AssetExists(assetID int64) (bool, error) {
	return a.r.exists(assetKey(assetID))
}

func (a assets) AssetNameExists(name string) (bool, error) {
	return a.r.exists(assetNameKey(name))
}

func (a assets) NextAssetID() (int64, error) {
	data, err := a.r.get(keyNextAssetID)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, core.WrapData("decode next asset id", err)
	}
	return id, nil
}

func (a assets) SaveAsset(asset *core.AssetData) error {
	if err := a.r.putJSON(assetKey(asset.AssetID), asset); err != nil {
		return err
	}
	id := []byte(strconv.FormatInt(asset.AssetID, 10))
	a.r.set(assetNameKey(asset.Name), id)
	if len(asset.Reference) > 0 {
		a.r.set(prefixAssetRef+hx(asset.Reference), id)
	}
	next, err := a.NextAssetID()
	if err != nil {
		return err
	}
	if asset.AssetID >= next {
		a.r.set(keyNextAssetID, []byte(strconv.FormatInt(asset.AssetID+1, 10)))
	}
	return nil
}

func (a assets) DeleteAsset(assetID int64) error {
	asset, err := a.FromAssetID(assetID)
	if err != nil {
		return err
	}
	a.r.del(assetKey(assetID))
	a.r.del(assetNameKey(asset.Name))
	if len(asset.Reference) > 0 {
		a.r.del(prefixAssetRef + hx(asset.Reference))
	}
	next, err := a.NextAssetID()
	if err != nil {
		return err
	}
	if assetID == next-1 {
		if assetID == 0 {
			a.r.del(keyNextAssetID)
		} else {
			a.r.set(keyNextAssetID, []byte(strconv.FormatInt(assetID, 10)))
		}
	}
	return nil
}

// ---- Orders ----

func (a assets) FromOrderID(orderID []byte) (*core.OrderData, error) {
	var order core.OrderData
	if err := a.r.getJSON(prefixOrder+hx(orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (a assets) loadOrders(indexPrefix string) ([]*core.OrderData, error) {
	keys, _, err := a.r.scan(indexPrefix)
	if err != nil {
		return nil, err
	}
	orders := make([]*core.OrderData, 0, len(keys))
	for _, k := range keys {
		id := k[strings.LastIndexByte(k, ':')+1:]
		var order core.OrderData
		if err := a.r.getJSON(prefixOrder+id, &order); err != nil {
			return nil, err
		}
		orders = append(orders, &order)
	}
	return orders, nil
}

func (a assets) GetOpenOrders(haveAssetID, wantAssetID int64) ([]*core.OrderData, error) {
	orders, err := a.loadOrders(bookPrefix(haveAssetID, wantAssetID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if c := orders[i].Price.Cmp(orders[j].Price); c != 0 {
			return c < 0
		}
		if orders[i].Timestamp != orders[j].Timestamp {
			return orders[i].Timestamp < orders[j].Timestamp
		}
		return bytes.Compare(orders[i].OrderID, orders[j].OrderID) < 0
	})
	return orders, nil
}

func (a assets) GetAccountsOrders(creatorPublicKey []byte) ([]*core.OrderData, error) {
	orders, err := a.loadOrders(prefixCreatorBook + hx(creatorPublicKey) + ":")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].Timestamp < orders[j].Timestamp })
	return orders, nil
}

// SaveOrder stores the order and keeps the open-order book index in step with
// its open/closed/fulfilled flags.
func (a assets) SaveOrder(order *core.OrderData) error {
	id := hx(order.OrderID)
	if err := a.r.putJSON(prefixOrder+id, order); err != nil {
		return err
	}
	a.r.set(prefixCreatorBook+hx(order.CreatorPublicKey)+":"+id, nil)
	bookKey := bookPrefix(order.HaveAssetID, order.WantAssetID) + id
	if order.IsOpen() {
		a.r.set(bookKey, nil)
	} else {
		a.r.del(bookKey)
	}
	return nil
}

func (a assets) DeleteOrder(orderID []byte) error {
	order, err := a.FromOrderID(orderID)
	if err != nil {
		return err
	}
	id := hx(orderID)
	a.r.del(prefixOrder + id)
	a.r.del(prefixCreatorBook + hx(order.CreatorPublicKey) + ":" + id)
	a.r.del(bookPrefix(order.HaveAssetID, order.WantAssetID) + id)
	return nil
}

// ---- Trades ----

func (a assets) GetOrdersTrades(orderID []byte) ([]*core.TradeData, error) {
	keys, vals, err := a.r.scan(prefixOrderTrade + hx(orderID) + ":")
	if err != nil {
		return nil, err
	}
	trades := make([]*core.TradeData, 0, len(keys))
	for _, k := range keys {
		var trade core.TradeData
		if err := a.r.getJSON(string(vals[k]), &trade); err != nil {
			return nil, err
		}
		trades = append(trades, &trade)
	}
	return trades, nil
}

func (a assets) SaveTrade(trade *core.TradeData) error {
	key := tradeKey(trade.Initiator, trade.Target, trade.Timestamp)
	if err := a.r.putJSON(key, trade); err != nil {
		return err
	}
	a.r.set(orderTradeKey(trade.Initiator, trade.Timestamp, trade.Target), []byte(key))
	a.r.set(orderTradeKey(trade.Target, trade.Timestamp, trade.Initiator), []byte(key))
	return nil
}

func (a assets) DeleteTrade(trade *core.TradeData) error {
	a.r.del(tradeKey(trade.Initiator, trade.Target, trade.Timestamp))
	a.r.del(orderTradeKey(trade.Initiator, trade.Timestamp, trade.Target))
	a.r.del(orderTradeKey(trade.Target, trade.Timestamp, trade.Initiator))
	return nil
}
