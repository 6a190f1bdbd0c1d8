// Package solana implements the on-chain transaction executors backing both
// the single-owner withdrawal queue and the multi-sig proposal engine. The
// treasury hot wallet signs and pays fees for every transfer; quorum for
// multi-sig payouts is enforced upstream before a transfer ever reaches this
// package.
package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	"github.com/justthetip/treasury_service/internal/infrastructure/config"
	"github.com/justthetip/treasury_service/pkg/logger"
)

var (
	tokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// ErrNoTokenAccount is returned when a party has no token account for the
	// transfer mint.
	ErrNoTokenAccount = errors.New("no token account for mint")

	// ErrNotConfirmed is returned when a broadcast transaction did not reach
	// the configured commitment within the polling budget.
	ErrNotConfirmed = errors.New("transaction not confirmed")
)

// Executor sends treasury transfers on Solana. A single mutex serializes
// broadcasts so concurrent payouts cannot trip RPC rate limits or race the
// hot wallet's balance.
type Executor struct {
	client         *rpc.Client
	treasury       solana.PrivateKey
	usdcMint       solana.PublicKey
	commitment     rpc.CommitmentType
	confirmRetries int
	logger         *logger.Logger

	txMu sync.Mutex
}

// NewExecutor builds an executor from the Solana configuration. The treasury
// secret must be a base58-encoded private key.
func NewExecutor(cfg *config.SolanaConfig, log *logger.Logger) (*Executor, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("solana rpc_url is required")
	}

	treasury, err := solana.PrivateKeyFromBase58(cfg.TreasurySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to parse treasury secret: %w", err)
	}

	usdcMint, err := solana.PublicKeyFromBase58(cfg.USDCMint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse usdc mint: %w", err)
	}

	retries := cfg.ConfirmRetries
	if retries <= 0 {
		retries = 30
	}

	commitment := rpc.CommitmentType(cfg.Commitment)
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}

	return &Executor{
		client:         rpc.New(cfg.RPCURL),
		treasury:       treasury,
		usdcMint:       usdcMint,
		commitment:     commitment,
		confirmRetries: retries,
		logger:         log,
	}, nil
}

// TreasuryAddress returns the hot wallet's public address.
func (e *Executor) TreasuryAddress() string {
	return e.treasury.PublicKey().String()
}

// ExecuteTransfer moves funds from the treasury hot wallet to an external
// address and returns the confirmed transaction signature.
func (e *Executor) ExecuteTransfer(ctx context.Context, toAddress string, amount int64, currency entities.Currency) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("invalid transfer amount %d", amount)
	}

	recipient, err := solana.PublicKeyFromBase58(toAddress)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}

	var instruction solana.Instruction
	switch currency {
	case entities.CurrencySOL:
		instruction = e.buildSOLTransfer(recipient, uint64(amount))
	case entities.CurrencyUSDC:
		instruction, err = e.buildUSDCTransfer(ctx, recipient, uint64(amount))
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported currency %s", currency)
	}

	return e.signAndSend(ctx, []solana.Instruction{instruction})
}

// ExecuteMultiSigTransfer executes a quorum-approved payout. Vault funds are
// custodied by the treasury hot wallet, so the on-chain mechanics are the same
// transfer; the wallet argument identifies which vault the payout draws from.
func (e *Executor) ExecuteMultiSigTransfer(ctx context.Context, wallet *entities.MultiSigWallet, data entities.TransactionData) (string, error) {
	e.logger.Info("Executing multi-sig payout",
		"multisig_address", wallet.Address,
		"recipient", data.Recipient,
		"amount", data.Amount,
		"currency", data.Currency)

	return e.ExecuteTransfer(ctx, data.Recipient, data.Amount, data.Currency)
}

// CreateMultiSigAccount provisions a fresh vault address for an M-of-N wallet.
// The generated key is discarded: the vault is an accounting address and its
// funds remain custodied by the treasury hot wallet.
func (e *Executor) CreateMultiSigAccount(ctx context.Context, signers []string, threshold int) (string, error) {
	vault := solana.NewWallet()
	address := vault.PublicKey().String()

	e.logger.Info("Provisioned multi-sig vault address",
		"address", address,
		"signers", len(signers),
		"threshold", threshold)

	return address, nil
}

func (e *Executor) buildSOLTransfer(recipient solana.PublicKey, lamports uint64) solana.Instruction {
	// SystemProgram Transfer: instruction index 2 (u32 LE) + lamports (u64 LE).
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	accounts := solana.AccountMetaSlice{
		{PublicKey: e.treasury.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: recipient, IsSigner: false, IsWritable: true},
	}

	return solana.NewInstruction(solana.SystemProgramID, accounts, data)
}

func (e *Executor) buildUSDCTransfer(ctx context.Context, recipient solana.PublicKey, amount uint64) (solana.Instruction, error) {
	source, err := e.tokenAccountFor(ctx, e.treasury.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("treasury: %w", err)
	}
	dest, err := e.tokenAccountFor(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	// Token Transfer: discriminator 3 + amount (u64 LE).
	amountBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(amountBytes, amount)
	data := append([]byte{3}, amountBytes...)

	accounts := solana.AccountMetaSlice{
		{PublicKey: source, IsSigner: false, IsWritable: true},
		{PublicKey: dest, IsSigner: false, IsWritable: true},
		{PublicKey: e.treasury.PublicKey(), IsSigner: true, IsWritable: false},
	}

	return solana.NewInstruction(tokenProgramID, accounts, data), nil
}

func (e *Executor) tokenAccountFor(ctx context.Context, owner solana.PublicKey) (solana.PublicKey, error) {
	accounts, err := e.client.GetTokenAccountsByOwner(ctx, owner, &rpc.GetTokenAccountsConfig{
		Mint: &e.usdcMint,
	}, &rpc.GetTokenAccountsOpts{
		Encoding: solana.EncodingBase64,
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to look up token accounts: %w", err)
	}
	if len(accounts.Value) == 0 {
		return solana.PublicKey{}, ErrNoTokenAccount
	}
	return accounts.Value[0].Pubkey, nil
}

func (e *Executor) signAndSend(ctx context.Context, instructions []solana.Instruction) (string, error) {
	e.txMu.Lock()
	defer e.txMu.Unlock()

	blockhash, err := e.client.GetLatestBlockhash(ctx, e.commitment)
	if err != nil {
		return "", fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash.Value.Blockhash,
		solana.TransactionPayer(e.treasury.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	treasuryKey := e.treasury.PublicKey()
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(treasuryKey) {
			return &e.treasury
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	sig, err := e.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	if err := e.awaitConfirmation(ctx, sig); err != nil {
		return "", err
	}

	return sig.String(), nil
}

// awaitConfirmation polls signature status until the transaction is at least
// confirmed, a chain-level error is reported, or the retry budget runs out.
func (e *Executor) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	return retry.Do(
		func() error {
			statuses, err := e.client.GetSignatureStatuses(ctx, false, sig)
			if err != nil {
				return fmt.Errorf("failed to get signature status: %w", err)
			}
			if len(statuses.Value) == 0 || statuses.Value[0] == nil {
				return ErrNotConfirmed
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return retry.Unrecoverable(fmt.Errorf("transaction failed on chain: %v", status.Err))
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
			return ErrNotConfirmed
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.confirmRetries)),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
