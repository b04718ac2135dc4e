package block

// ValidationResult is the outcome of block validation. Anything but OK means
// the block must not be applied.
type ValidationResult int

const (
	OK ValidationResult = iota
	ParentDoesNotExist
	ParentNotTip
	VersionIncorrect
	TimestampTooSoon
	TimestampInFuture
	GeneratingBalanceIncorrect
	GeneratorNotAccepted
	TooManyBytes
	DuplicateTransaction
	TransactionAlreadyExists
	GeneratorSignatureInvalid
	TransactionsSignatureInvalid
	TransactionInvalid
)

var resultNames = [...]string{
	OK:                           "OK",
	ParentDoesNotExist:           "PARENT_DOES_NOT_EXIST",
	ParentNotTip:                 "PARENT_NOT_TIP",
	VersionIncorrect:             "VERSION_INCORRECT",
	TimestampTooSoon:             "TIMESTAMP_TOO_SOON",
	TimestampInFuture:            "TIMESTAMP_IN_FUTURE",
	GeneratingBalanceIncorrect:   "GENERATING_BALANCE_INCORRECT",
	GeneratorNotAccepted:         "GENERATOR_NOT_ACCEPTED",
	TooManyBytes:                 "TOO_MANY_BYTES",
	DuplicateTransaction:         "DUPLICATE_TRANSACTION",
	TransactionAlreadyExists:     "TRANSACTION_ALREADY_EXISTS",
	GeneratorSignatureInvalid:    "GENERATOR_SIGNATURE_INVALID",
	TransactionsSignatureInvalid: "TRANSACTIONS_SIGNATURE_INVALID",
	TransactionInvalid:           "TRANSACTION_INVALID",
}

func (r ValidationResult) String() string {
	if r >= 0 && int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "UNKNOWN"
}
