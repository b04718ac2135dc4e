// Package block assembles, validates, signs, applies and orphans blocks.
// Apply and orphan are exact inverses and run under one open repository
// transaction; the caller commits or discards.
package block

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/at"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/ledger"
	"github.com/tolelom/qorachain/transaction"
)

// ErrNotTip is returned when orphaning a block that is not the chain tip.
var ErrNotTip = errors.New("block is not the chain tip")

// Block is a block together with its decoded signed transactions. AT-generated
// transactions are not part of the body; Process derives them.
type Block struct {
	params consensus.Params
	data   *core.BlockData
	txs    []transaction.Transaction
	seen   map[string]bool
	txSize int

	invalidTx     *core.TransactionData
	invalidResult core.ValidationResult
}

// New wraps a received or stored block. txs are its signed transactions in
// sequence order.
func New(params consensus.Params, data *core.BlockData, txs []*core.TransactionData) (*Block, error) {
	b := &Block{params: params, data: data, seen: make(map[string]bool)}
	for _, d := range txs {
		tx, err := transaction.FromData(d)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", d.SignatureHex(), err)
		}
		b.append(tx)
	}
	return b, nil
}

// Load rebuilds an applied block from the repository, leaving out its
// AT-generated transactions.
func Load(params consensus.Params, repo core.Repository, data *core.BlockData) (*Block, error) {
	all, err := repo.BlockRepository().GetTransactionsFromSignature(data.Signature())
	if err != nil {
		return nil, err
	}
	signed := make([]*core.TransactionData, 0, len(all))
	for _, tx := range all {
		if tx.Type != core.TxAT {
			signed = append(signed, tx)
		}
	}
	return New(params, data, signed)
}

// NewCandidate starts an empty, unsigned child of parent for generator.
func NewCandidate(params consensus.Params, repo core.Repository, parent *core.BlockData, generator crypto.PublicKey, timestamp int64) (*Block, error) {
	balance, err := consensus.NextGeneratingBalance(params, repo.BlockRepository(), parent)
	if err != nil {
		return nil, err
	}
	data := &core.BlockData{
		Version:            params.VersionAt(timestamp),
		Reference:          parent.Signature(),
		Timestamp:          timestamp,
		GeneratingBalance:  balance,
		GeneratorPublicKey: generator,
		TotalFees:          decimal.Zero,
		ATFees:             decimal.Zero,
	}
	return New(params, data, nil)
}

func (b *Block) Data() *core.BlockData { return b.data }

func (b *Block) Signature() []byte { return b.data.Signature() }

// Transactions returns the signed transactions in sequence order.
func (b *Block) Transactions() []*core.TransactionData {
	out := make([]*core.TransactionData, len(b.txs))
	for i, tx := range b.txs {
		out[i] = tx.Data()
	}
	return out
}

// InvalidTransaction reports the transaction that made the last IsValid call
// return TransactionInvalid, and why.
func (b *Block) InvalidTransaction() (*core.TransactionData, core.ValidationResult) {
	return b.invalidTx, b.invalidResult
}

// Size is the block's byte count: header plus each transaction's encoding.
func (b *Block) Size() int {
	header, err := json.Marshal(b.data)
	if err != nil {
		return 0
	}
	return len(header) + b.txSize
}

func (b *Block) append(tx transaction.Transaction) {
	b.txs = append(b.txs, tx)
	b.seen[tx.Data().SignatureHex()] = true
	b.txSize += tx.Data().Size()
	b.data.TransactionCount = len(b.txs)
}

// AddTransaction appends data with the next sequence number. It returns false,
// leaving the block untouched, if data is a duplicate, is not a signed kind or
// would push the block past MaxBlockBytes. The block must be signed again
// afterwards.
func (b *Block) AddTransaction(data *core.TransactionData) bool {
	if data.Type == core.TxAT || data.Type == core.TxGenesis {
		return false
	}
	if b.seen[data.SignatureHex()] {
		return false
	}
	if b.Size()+data.Size() > b.params.MaxBlockBytes {
		return false
	}
	tx, err := transaction.FromData(data)
	if err != nil {
		return false
	}
	b.append(tx)
	return true
}

func (b *Block) generatorSigningBytes() []byte {
	ref := b.data.Reference
	if len(ref) > crypto.SignatureLength {
		ref = ref[:crypto.SignatureLength]
	}
	buf := make([]byte, 0, 4+len(ref)+16+len(b.data.GeneratorPublicKey))
	buf = binary.BigEndian.AppendUint32(buf, uint32(b.data.Version))
	buf = append(buf, ref...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.data.Timestamp))
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.data.GeneratingBalance.Shift(core.AmountScale).IntPart()))
	return append(buf, b.data.GeneratorPublicKey...)
}

func (b *Block) transactionsSigningBytes() []byte {
	buf := append([]byte(nil), b.data.GeneratorSignature...)
	for _, tx := range b.txs {
		buf = append(buf, tx.Data().Signature...)
	}
	return buf
}

// Sign computes the generator signature, then the transactions signature
// over it and every signed transaction.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.data.GeneratorSignature = crypto.Sign(priv, b.generatorSigningBytes())
	b.data.TransactionsSignature = crypto.Sign(priv, b.transactionsSigningBytes())
}

// IsValid checks the block against the current tip of repo. now is the
// network-adjusted time in unix ms. Transactions are trial-applied under a
// savepoint that is always rolled back.
func (b *Block) IsValid(repo core.Repository, now int64) (ValidationResult, error) {
	b.invalidTx, b.invalidResult = nil, core.OK
	blocks := repo.BlockRepository()

	parent, err := blocks.FromSignature(b.data.Reference)
	if errors.Is(err, core.ErrNotFound) {
		return ParentDoesNotExist, nil
	}
	if err != nil {
		return OK, err
	}
	height, err := blocks.GetBlockchainHeight()
	if err != nil {
		return OK, err
	}
	if parent.Height != height {
		return ParentNotTip, nil
	}

	if b.data.Version != b.params.VersionAt(b.data.Timestamp) {
		return VersionIncorrect, nil
	}
	if b.data.Timestamp < consensus.CalcMinTimestamp(b.params, parent, b.data.GeneratorPublicKey) {
		return TimestampTooSoon, nil
	}
	if b.data.Timestamp > now+b.params.MaxFutureDrift {
		return TimestampInFuture, nil
	}

	balance, err := consensus.NextGeneratingBalance(b.params, blocks, parent)
	if err != nil {
		return OK, err
	}
	if !balance.Equal(b.data.GeneratingBalance) {
		return GeneratingBalanceIncorrect, nil
	}
	forging, err := ledger.NewPublicKeyAccount(repo, b.data.GeneratorPublicKey).ConfirmedBalance(core.NativeAssetID)
	if err != nil {
		return OK, err
	}
	if forging.Cmp(b.params.MinForgingBalance) < 0 {
		return GeneratorNotAccepted, nil
	}

	if b.Size() > b.params.MaxBlockBytes {
		return TooManyBytes, nil
	}
	if crypto.Verify(b.data.GeneratorPublicKey, b.generatorSigningBytes(), b.data.GeneratorSignature) != nil {
		return GeneratorSignatureInvalid, nil
	}
	if crypto.Verify(b.data.GeneratorPublicKey, b.transactionsSigningBytes(), b.data.TransactionsSignature) != nil {
		return TransactionsSignatureInvalid, nil
	}
	return b.validateTransactions(repo, height+1)
}

func (b *Block) validateTransactions(repo core.Repository, height int) (result ValidationResult, err error) {
	savepoint := repo.Savepoint()
	defer func() {
		if rbErr := repo.RollbackTo(savepoint); rbErr != nil && err == nil {
			err = rbErr
		}
	}()

	ctx := &transaction.Context{Repo: repo, BlockTimestamp: b.data.Timestamp, BlockHeight: height}
	seen := make(map[string]bool, len(b.txs))
	for _, tx := range b.txs {
		data := tx.Data()
		sig := data.SignatureHex()
		if seen[sig] {
			return DuplicateTransaction, nil
		}
		seen[sig] = true

		if _, err := repo.TransactionRepository().FromSignature(data.Signature); err == nil {
			return TransactionAlreadyExists, nil
		} else if !errors.Is(err, core.ErrNotFound) {
			return OK, err
		}

		txResult, err := transaction.Validate(ctx, tx)
		if err != nil {
			return OK, err
		}
		if txResult != core.OK {
			b.invalidTx, b.invalidResult = data, txResult
			return TransactionInvalid, nil
		}
		// Later transactions must see earlier ones' effects.
		if err := tx.Process(ctx); err != nil {
			return OK, fmt.Errorf("trial process %s: %w", sig, err)
		}
	}
	return OK, nil
}

// Process applies the block on top of the current tip: signed transactions
// in sequence order, then every executable AT, then fees to the generator.
// It assigns the height and persists the block row last.
func (b *Block) Process(ctx context.Context, repo core.Repository, engine at.Engine) error {
	blocks := repo.BlockRepository()
	height, err := blocks.GetBlockchainHeight()
	if err != nil {
		return err
	}
	height++
	b.data.Height = height
	txCtx := &transaction.Context{Repo: repo, BlockTimestamp: b.data.Timestamp, BlockHeight: height}

	if height == 1 {
		if err := b.issueNativeAsset(repo); err != nil {
			return err
		}
	}

	fees := decimal.Zero
	sequence := 0
	for _, tx := range b.txs {
		sequence++
		if err := b.processTransaction(txCtx, tx, sequence); err != nil {
			return fmt.Errorf("process transaction %d (%s): %w", sequence, tx.Data().SignatureHex(), err)
		}
		fees = fees.Add(tx.Data().Fee)
	}

	atFees, atCount := decimal.Zero, 0
	if b.data.Version >= 2 {
		if engine == nil {
			engine = at.NopEngine{}
		}
		if atFees, atCount, err = b.processATs(ctx, txCtx, engine, &sequence); err != nil {
			return err
		}
	}

	b.data.TransactionCount = len(b.txs)
	b.data.ATCount = atCount
	b.data.ATFees = atFees
	b.data.TotalFees = fees.Add(atFees)

	generator := ledger.NewPublicKeyAccount(repo, b.data.GeneratorPublicKey)
	if err := generator.Credit(core.NativeAssetID, b.data.TotalFees); err != nil {
		return err
	}
	return blocks.Save(b.data)
}

func (b *Block) processTransaction(ctx *transaction.Context, tx transaction.Transaction, sequence int) error {
	data := tx.Data()
	if err := ctx.Repo.TransactionRepository().Save(data); err != nil {
		return err
	}
	link := &core.BlockTransactionData{
		BlockSignature:       b.Signature(),
		Sequence:             sequence,
		TransactionSignature: data.Signature,
	}
	if err := ctx.Repo.BlockRepository().SaveTransaction(link); err != nil {
		return err
	}
	if err := ctx.Repo.TransactionRepository().SaveParticipants(data.Signature, tx.InvolvedAddresses()); err != nil {
		return err
	}
	return tx.Process(ctx)
}

// processATs runs executable ATs once each, oldest first, up to
// MaxATsPerBlock of them and MaxATBytes of resulting state. An AT whose new
// state does not fit in what is left of the byte budget waits for a later
// block; one whose state exceeds the whole budget keeps its old state and
// finishes. Fees come out of the AT's native balance; an AT that cannot pay
// its fee pays what it has and finishes. Generated payments that fail
// validation are dropped.
func (b *Block) processATs(ctx context.Context, txCtx *transaction.Context, engine at.Engine, sequence *int) (decimal.Decimal, int, error) {
	repo := txCtx.Repo
	ats, err := repo.ATRepository().GetExecutableATs()
	if err != nil {
		return decimal.Zero, 0, err
	}

	total := decimal.Zero
	ran, stateBytes := 0, 0
	for _, a := range ats {
		if ran >= b.params.MaxATsPerBlock {
			break
		}
		result, err := engine.Execute(ctx, a, a.State, b.data.Timestamp)
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("execute AT %s: %w", a.ATAddress, err)
		}
		if len(result.State) > b.params.MaxATBytes {
			result = &at.Result{State: a.State, Fee: result.Fee, IsFinished: true}
		}
		if stateBytes+len(result.State) > b.params.MaxATBytes {
			continue
		}
		ran++
		stateBytes += len(result.State)

		account := ledger.NewAccount(repo, a.ATAddress)
		fee := core.RoundDown(result.Fee)
		if fee.Sign() < 0 {
			fee = decimal.Zero
		}
		finished := result.IsFinished
		balance, err := account.ConfirmedBalance(core.NativeAssetID)
		if err != nil {
			return decimal.Zero, 0, err
		}
		if balance.Cmp(fee) < 0 {
			fee, finished = balance, true
		}
		if err := account.Debit(core.NativeAssetID, fee); err != nil {
			return decimal.Zero, 0, err
		}

		for _, payment := range result.Payments {
			tx, err := b.atTransaction(repo, a, payment, *sequence+1)
			if err != nil {
				return decimal.Zero, 0, err
			}
			valid, err := tx.IsValid(txCtx)
			if err != nil {
				return decimal.Zero, 0, err
			}
			if valid != core.OK {
				continue
			}
			*sequence++
			if err := b.processTransaction(txCtx, tx, *sequence); err != nil {
				return decimal.Zero, 0, fmt.Errorf("AT %s payment: %w", a.ATAddress, err)
			}
		}

		state := &core.ATStateData{
			ATAddress:  a.ATAddress,
			Height:     b.data.Height,
			State:      result.State,
			StateHash:  at.StateHash(result.State),
			Fees:       fee,
			IsFinished: finished,
		}
		if err := repo.ATRepository().SaveATState(state); err != nil {
			return decimal.Zero, 0, err
		}
		a.State = result.State
		a.IsFinished = finished
		if err := repo.ATRepository().Save(a); err != nil {
			return decimal.Zero, 0, err
		}
		total = total.Add(fee)
	}
	return total, ran, nil
}

func (b *Block) atTransaction(repo core.Repository, a *core.ATData, payment at.Payment, sequence int) (transaction.Transaction, error) {
	ref, err := ledger.NewAccount(repo, a.ATAddress).LastReference()
	if err != nil {
		return nil, err
	}
	data, err := core.NewTransaction(core.TxAT, nil, b.data.Timestamp, ref, decimal.Zero, core.ATPayload{
		ATAddress: a.ATAddress,
		Recipient: payment.Recipient,
		AssetID:   payment.AssetID,
		Amount:    payment.Amount,
		Message:   payment.Message,
	})
	if err != nil {
		return nil, err
	}
	data.Signature = at.TransactionSignature(a.ATAddress, b.data.Height, sequence)
	return transaction.FromData(data)
}

// Orphan reverses Process. The block must be the current tip.
func (b *Block) Orphan(repo core.Repository) error {
	blocks := repo.BlockRepository()
	tip, err := blocks.GetLastBlock()
	if err != nil {
		return err
	}
	if !bytes.Equal(tip.Signature(), b.Signature()) {
		return ErrNotTip
	}
	height := tip.Height
	txCtx := &transaction.Context{Repo: repo, BlockTimestamp: tip.Timestamp, BlockHeight: height}

	generator := ledger.NewPublicKeyAccount(repo, tip.GeneratorPublicKey)
	if err := generator.Debit(core.NativeAssetID, tip.TotalFees); err != nil {
		return err
	}

	all, err := blocks.GetTransactionsFromSignature(tip.Signature())
	if err != nil {
		return err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Type == core.TxAT {
			if err := orphanTransaction(txCtx, all[i]); err != nil {
				return err
			}
		}
	}
	if err := orphanATStates(repo, height); err != nil {
		return err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Type != core.TxAT {
			if err := orphanTransaction(txCtx, all[i]); err != nil {
				return err
			}
		}
	}

	if height == 1 {
		if err := repo.AssetRepository().DeleteAsset(core.NativeAssetID); err != nil {
			return err
		}
	}
	if err := blocks.DeleteTransactions(tip.Signature()); err != nil {
		return err
	}
	return blocks.Delete(tip)
}

func orphanTransaction(ctx *transaction.Context, data *core.TransactionData) error {
	tx, err := transaction.FromData(data)
	if err != nil {
		return err
	}
	if err := tx.Orphan(ctx); err != nil {
		return fmt.Errorf("orphan transaction %s: %w", data.SignatureHex(), err)
	}
	txRepo := ctx.Repo.TransactionRepository()
	if err := txRepo.DeleteParticipants(data.Signature); err != nil {
		return err
	}
	return txRepo.Delete(data)
}

// orphanATStates rolls every AT that ran at height back to its previous
// snapshot, or to its creation bytes if it never ran before, and refunds the
// fee it paid.
func orphanATStates(repo core.Repository, height int) error {
	atRepo := repo.ATRepository()
	states, err := atRepo.GetBlockATStates(height)
	if err != nil {
		return err
	}
	for i := len(states) - 1; i >= 0; i-- {
		state := states[i]
		a, err := atRepo.FromATAddress(state.ATAddress)
		if err != nil {
			return fmt.Errorf("AT %s: %w", state.ATAddress, err)
		}
		prev, err := atRepo.GetATStateBefore(state.ATAddress, height)
		switch {
		case err == nil:
			a.State, a.IsFinished = prev.State, prev.IsFinished
		case errors.Is(err, core.ErrNotFound):
			a.State, a.IsFinished = a.CreationBytes, false
		default:
			return err
		}
		if err := atRepo.Save(a); err != nil {
			return err
		}
		if err := ledger.NewAccount(repo, state.ATAddress).Credit(core.NativeAssetID, state.Fees); err != nil {
			return err
		}
	}
	return atRepo.DeleteATStates(height)
}

func (b *Block) issueNativeAsset(repo core.Repository) error {
	quantity := decimal.Zero
	for _, tx := range b.txs {
		if p, ok := tx.(*transaction.Genesis); ok {
			quantity = quantity.Add(p.Amount())
		}
	}
	return repo.AssetRepository().SaveAsset(&core.AssetData{
		AssetID:     core.NativeAssetID,
		Name:        b.params.NativeAssetName,
		Description: "native coin",
		Quantity:    quantity,
		IsDivisible: true,
		Reference:   b.Signature(),
	})
}
