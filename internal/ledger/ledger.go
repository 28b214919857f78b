package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrLedger wraps every failure talking to the chain.
	ErrLedger = errors.New("ledger error")
	// ErrReadOnly is returned by CreateItem when no signing key is configured.
	ErrReadOnly = errors.New("ledger is read-only: no private key configured")
	// ErrInvalidAddress is returned for a malformed contract address.
	ErrInvalidAddress = errors.New("invalid contract address")
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = 250 * time.Millisecond
)

// Ledger is the marketplace contract as seen by the catalog and the
// submission flow.
type Ledger interface {
	// CreationEvents returns every SampleCreated event from fromBlock to the
	// chain tip, in log order.
	CreationEvents(ctx context.Context, fromBlock uint64) ([]models.CreationEvent, error)
	// ItemDetail reads the current state of one item.
	ItemDetail(ctx context.Context, id uint64) (models.ItemDetail, error)
	// CreateItem submits a createSample transaction and returns its hash
	// without waiting for it to be mined.
	CreateItem(ctx context.Context, sub models.Submission, cid string) (string, error)
}

// Backend is the part of an Ethereum client needed for reads.
// *ethclient.Client satisfies it.
type Backend interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EthLedger implements Ledger over JSON-RPC.
type EthLedger struct {
	backend  Backend
	client   *ethclient.Client // nil unless created by Dial
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract // nil when backend cannot send transactions
	opts     *bind.TransactOpts

	maxRetries uint64
	retryBase  time.Duration
}

// NewEthLedger binds the contract at contractAddress on backend. Transactions
// are only possible when backend is a full bind.ContractBackend and a signer
// is set.
func NewEthLedger(backend Backend, contractAddress string) (*EthLedger, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, contractAddress)
	}
	parsed, err := parseSampleABI()
	if err != nil {
		return nil, fmt.Errorf("parsing contract ABI: %w", err)
	}

	l := &EthLedger{
		backend:    backend,
		address:    common.HexToAddress(contractAddress),
		abi:        parsed,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
	if cb, ok := backend.(bind.ContractBackend); ok {
		l.contract = bind.NewBoundContract(l.address, parsed, cb, cb, cb)
	}
	return l, nil
}

// Dial connects to cfg.RpcUrl, reusing httpClient (and so its transport and
// timeout) for every JSON-RPC call. When cfg.PrivateKey is set the ledger can
// also submit transactions.
func Dial(ctx context.Context, cfg models.Config, httpClient *http.Client) (*EthLedger, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.RpcTimeoutSec) * time.Second}
	}
	rpcClient, err := rpc.DialOptions(ctx, cfg.RpcUrl, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrLedger, cfg.RpcUrl, err)
	}
	client := ethclient.NewClient(rpcClient)

	l, err := NewEthLedger(client, cfg.ContractAddress)
	if err != nil {
		client.Close()
		return nil, err
	}
	l.client = client

	if cfg.PrivateKey != "" {
		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: reading chain id: %w", ErrLedger, err)
		}
		if err := l.SetSigner(cfg.PrivateKey, chainID); err != nil {
			client.Close()
			return nil, err
		}
	}
	log.WithFields(log.Fields{"rpc": cfg.RpcUrl, "contract": l.address.Hex()}).Debug("Ledger connected")
	return l, nil
}

// SetSigner configures the key used by CreateItem.
func (l *EthLedger) SetSigner(privateKeyHex string, chainID *big.Int) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return fmt.Errorf("parsing private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return fmt.Errorf("creating transactor: %w", err)
	}
	l.opts = opts
	return nil
}

// Address returns the bound contract address.
func (l *EthLedger) Address() string {
	return l.address.Hex()
}

// Close releases the RPC connection, if this ledger owns one.
func (l *EthLedger) Close() {
	if l.client != nil {
		l.client.Close()
	}
}

// CreationEvents implements Ledger.
func (l *EthLedger) CreationEvents(ctx context.Context, fromBlock uint64) ([]models.CreationEvent, error) {
	event := l.abi.Events[eventSampleCreated]
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{l.address},
		Topics:    [][]common.Hash{{event.ID}},
	}

	var logs []types.Log
	err := l.withRetry(ctx, "filter logs", func(ctx context.Context) error {
		var err error
		logs, err = l.backend.FilterLogs(ctx, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s events: %w", ErrLedger, eventSampleCreated, err)
	}

	events := make([]models.CreationEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := l.decodeCreationEvent(lg)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding event in tx %s: %w", ErrLedger, lg.TxHash.Hex(), err)
		}
		events = append(events, ev)
	}
	log.WithField("count", len(events)).Debug("Read creation events")
	return events, nil
}

func (l *EthLedger) decodeCreationEvent(lg types.Log) (models.CreationEvent, error) {
	var raw sampleCreated
	if err := l.abi.UnpackIntoInterface(&raw, eventSampleCreated, lg.Data); err != nil {
		return models.CreationEvent{}, err
	}
	id, err := toUint64("id", raw.Id)
	if err != nil {
		return models.CreationEvent{}, err
	}
	copies, err := toUint64("numberOfCopies", raw.NumberOfCopies)
	if err != nil {
		return models.CreationEvent{}, err
	}
	return models.CreationEvent{
		ID:             id,
		Creator:        raw.AddressArtist.Hex(),
		Artist:         raw.Artist,
		Title:          raw.Title,
		Category:       raw.Category,
		Description:    raw.Description,
		NumberOfCopies: copies,
		Price:          raw.PriceNft,
		CID:            raw.IpfsHash,
		BlockNumber:    lg.BlockNumber,
		TxHash:         lg.TxHash.Hex(),
	}, nil
}

// ItemDetail implements Ledger.
func (l *EthLedger) ItemDetail(ctx context.Context, id uint64) (models.ItemDetail, error) {
	data, err := l.abi.Pack(methodGetOneSample, new(big.Int).SetUint64(id))
	if err != nil {
		return models.ItemDetail{}, fmt.Errorf("%w: packing %s: %w", ErrLedger, methodGetOneSample, err)
	}
	msg := ethereum.CallMsg{To: &l.address, Data: data}

	var out []byte
	err = l.withRetry(ctx, methodGetOneSample, func(ctx context.Context) error {
		var err error
		out, err = l.backend.CallContract(ctx, msg, nil)
		return err
	})
	if err != nil {
		return models.ItemDetail{}, fmt.Errorf("%w: %s(%d): %w", ErrLedger, methodGetOneSample, id, err)
	}

	values, err := l.abi.Unpack(methodGetOneSample, out)
	if err != nil {
		return models.ItemDetail{}, fmt.Errorf("%w: decoding %s(%d): %w", ErrLedger, methodGetOneSample, id, err)
	}
	if len(values) != 1 {
		return models.ItemDetail{}, fmt.Errorf("%w: %s(%d) returned %d values", ErrLedger, methodGetOneSample, id, len(values))
	}
	raw := *abi.ConvertType(values[0], new(sampleDetail)).(*sampleDetail)

	copies, err := toUint64("numberOfCopies", raw.NumberOfCopies)
	if err != nil {
		return models.ItemDetail{}, fmt.Errorf("%w: %s(%d): %w", ErrLedger, methodGetOneSample, id, err)
	}
	return models.ItemDetail{
		Title:          raw.Title,
		Artist:         raw.Artist,
		Category:       raw.Category,
		Description:    raw.Description,
		NumberOfCopies: copies,
		Price:          raw.PriceNft,
		CID:            raw.IpfsHash,
	}, nil
}

// CreateItem implements Ledger. It is never retried: a resent transaction
// would create a second item.
func (l *EthLedger) CreateItem(ctx context.Context, sub models.Submission, cid string) (string, error) {
	if l.contract == nil || l.opts == nil {
		return "", ErrReadOnly
	}
	args, err := createArgs(sub, cid)
	if err != nil {
		return "", err
	}

	opts := *l.opts
	opts.Context = ctx
	tx, err := l.contract.Transact(&opts, methodCreateSample, args...)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLedger, methodCreateSample, err)
	}
	log.WithFields(log.Fields{"tx": tx.Hash().Hex(), "cid": cid}).Info("Submitted createSample transaction")
	return tx.Hash().Hex(), nil
}

// WaitMined blocks until the transaction is included and returns its receipt.
// It needs a ledger created by Dial.
func (l *EthLedger) WaitMined(ctx context.Context, txHash string) (*types.Receipt, error) {
	if l.client == nil {
		return nil, fmt.Errorf("%w: no chain connection to wait on", ErrLedger)
	}
	tx, _, err := l.client.TransactionByHash(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("%w: looking up %s: %w", ErrLedger, txHash, err)
	}
	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for %s: %w", ErrLedger, txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: transaction %s reverted", ErrLedger, txHash)
	}
	return receipt, nil
}

// createArgs converts form fields into createSample arguments.
func createArgs(sub models.Submission, cid string) ([]interface{}, error) {
	price, err := helpers.ParseEth(sub.PriceEth)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		sub.Artist,
		sub.Title,
		sub.Category,
		sub.Description,
		new(big.Int).SetUint64(sub.NumberOfCopies),
		price,
		cid,
	}, nil
}

// withRetry runs fn with exponential backoff. Errors returned by the node
// itself (reverts, bad params) are final; transport errors are retried.
func (l *EthLedger) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(l.maxRetries, retry.NewExponential(l.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		log.WithError(err).WithFields(log.Fields{"op": op, "attempt": attempt}).Warn("Ledger read failed, retrying")
		return retry.RetryableError(err)
	})
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr rpc.Error
	return !errors.As(err, &rpcErr)
}

func toUint64(field string, v *big.Int) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("%s missing", field)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s %s out of range", field, v.String())
	}
	return v.Uint64(), nil
}
