package core

// ValidationResult is the outcome of a transaction validity check. Validation
// failures are values, never errors: the caller decides whether to reject the
// transaction or just leave it out of a candidate block.
type ValidationResult int

const (
	OK ValidationResult = iota
	InvalidAddress
	NegativeAmount
	NegativeFee
	NoBalance
	InvalidReference
	InvalidNameLength
	InvalidAmount
	InvalidDescriptionLength
	InvalidDataLength
	InvalidQuantity
	InvalidSignature
	InvalidTimestamp
	TimestampTooOld
	TimestampTooNew
	AssetDoesNotExist
	AssetAlreadyExists
	AssetDoesNotMatchAT
	ATIsFinished
	ATAlreadyExists
	InvalidOrderCreator
	OrderDoesNotExist
	OrderAlreadyClosed
	HaveEqualsWant
	NegativePrice
	InvalidPaymentsCount
	InvalidTransactionType
	NotGenesisBlock
)

var validationResultNames = [...]string{
	OK:                       "OK",
	InvalidAddress:           "INVALID_ADDRESS",
	NegativeAmount:           "NEGATIVE_AMOUNT",
	NegativeFee:              "NEGATIVE_FEE",
	NoBalance:                "NO_BALANCE",
	InvalidReference:         "INVALID_REFERENCE",
	InvalidNameLength:        "INVALID_NAME_LENGTH",
	InvalidAmount:            "INVALID_AMOUNT",
	InvalidDescriptionLength: "INVALID_DESCRIPTION_LENGTH",
	InvalidDataLength:        "INVALID_DATA_LENGTH",
	InvalidQuantity:          "INVALID_QUANTITY",
	InvalidSignature:         "INVALID_SIGNATURE",
	InvalidTimestamp:         "INVALID_TIMESTAMP",
	TimestampTooOld:          "TIMESTAMP_TOO_OLD",
	TimestampTooNew:          "TIMESTAMP_TOO_NEW",
	AssetDoesNotExist:        "ASSET_DOES_NOT_EXIST",
	AssetAlreadyExists:       "ASSET_ALREADY_EXISTS",
	AssetDoesNotMatchAT:      "ASSET_DOES_NOT_MATCH_AT",
	ATIsFinished:             "AT_IS_FINISHED",
	ATAlreadyExists:          "AT_ALREADY_EXISTS",
	InvalidOrderCreator:      "INVALID_ORDER_CREATOR",
	OrderDoesNotExist:        "ORDER_DOES_NOT_EXIST",
	OrderAlreadyClosed:       "ORDER_ALREADY_CLOSED",
	HaveEqualsWant:           "HAVE_EQUALS_WANT",
	NegativePrice:            "NEGATIVE_PRICE",
	InvalidPaymentsCount:     "INVALID_PAYMENTS_COUNT",
	InvalidTransactionType:   "INVALID_TRANSACTION_TYPE",
	NotGenesisBlock:          "NOT_GENESIS_BLOCK",
}

func (r ValidationResult) String() string {
	if r >= 0 && int(r) < len(validationResultNames) {
		return validationResultNames[r]
	}
	return "UNKNOWN"
}
