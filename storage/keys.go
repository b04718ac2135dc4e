package storage

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	prefixAccount     = "acct:"
	prefixBalance     = "bal:"
	prefixAsset       = "asset:"
	prefixAssetName   = "assetname:"
	prefixAssetRef    = "assetref:"
	prefixOrder       = "order:"
	prefixBook        = "book:"
	prefixCreatorBook = "ordersby:"
	prefixTrade       = "trade:"
	prefixOrderTrade  = "tradeby:"
	prefixBlock       = "block:"
	prefixHeight      = "height:"
	prefixBlockTx     = "blocktx:"
	prefixTxBlock     = "txblock:"
	prefixTx          = "tx:"
	prefixTxParts     = "txpart:"
	prefixAccountTx   = "acctx:"
	prefixAT          = "at:"
	prefixATState     = "atstate:"
	prefixATHeight    = "atheight:"

	keyChainHeight = "meta:height"
	keyNextAssetID = "meta:nextasset"
)

func hx(b []byte) string { return hex.EncodeToString(b) }

func balanceKey(address string, assetID int64) string {
	return fmt.Sprintf("%s%s:%019d", prefixBalance, address, assetID)
}

func assetKey(id int64) string { return fmt.Sprintf("%s%019d", prefixAsset, id) }

func assetNameKey(name string) string { return prefixAssetName + strings.ToLower(name) }

func bookPrefix(have, want int64) string {
	return fmt.Sprintf("%s%019d:%019d:", prefixBook, have, want)
}

func tradeKey(initiator, target []byte, ts int64) string {
	return fmt.Sprintf("%s%s:%s:%019d", prefixTrade, hx(initiator), hx(target), ts)
}

func orderTradeKey(order []byte, ts int64, other []byte) string {
	return fmt.Sprintf("%s%s:%019d:%s", prefixOrderTrade, hx(order), ts, hx(other))
}

func heightKey(h int) string { return fmt.Sprintf("%s%010d", prefixHeight, h) }

func blockTxKey(blockSig []byte, seq int) string {
	return fmt.Sprintf("%s%s:%010d", prefixBlockTx, hx(blockSig), seq)
}

func atStateKey(address string, h int) string {
	return fmt.Sprintf("%s%s:%010d", prefixATState, address, h)
}

func atHeightKey(h int, address string) string {
	return fmt.Sprintf("%s%010d:%s", prefixATHeight, h, address)
}
