// Package chain wraps the on-chain token contract surface the application
// consumes: a mint write, a tokenURI read and the Transfer event log.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const tokenABI = `[
  {"type":"function","name":"mint","inputs":[{"name":"tokenURI","type":"string"}],"outputs":[]},
  {"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

type (
	// Backend is the part of an RPC client the contract needs; satisfied by
	// *ethclient.Client.
	Backend interface {
		bind.ContractBackend
		TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	}

	// Contract is a high-level wrapper around the deployed token contract.
	Contract struct {
		abi      abi.ABI
		address  common.Address
		contract *bind.BoundContract
		backend  Backend
	}

	// Transfer is one decoded Transfer event.
	Transfer struct {
		From        common.Address
		To          common.Address
		TokenID     *big.Int
		BlockNumber uint64
	}
)

// NewContract connects to an already-deployed token contract.
func NewContract(address common.Address, backend Backend) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("can not parse token abi: %w", err)
	}
	bound := bind.NewBoundContract(address, parsed, backend, backend, backend)
	return &Contract{
		abi:      parsed,
		address:  address,
		contract: bound,
		backend:  backend,
	}, nil
}

// Mint records ownership of a new token referencing the given metadata
// locator. The returned transaction is pending until WaitMined.
func (c *Contract) Mint(opts *bind.TransactOpts, tokenURI string) (*types.Transaction, error) {
	return c.contract.Transact(opts, "mint", tokenURI)
}

// WaitMined blocks until one confirmation and fails on a reverted receipt.
func (c *Contract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", tx.Hash())
	}
	return receipt, nil
}

// TokenURI resolves a token's metadata locator.
func (c *Contract) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenURI", tokenID); err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// TransfersTo returns every Transfer event addressed to account, in log
// order, across the full available history. There is deliberately no block
// cursor yet; acceptable on a low-volume test network.
func (c *Contract) TransfersTo(ctx context.Context, account common.Address) ([]Transfer, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics: [][]common.Hash{
			{c.abi.Events["Transfer"].ID},
			nil,
			{common.BytesToHash(common.LeftPadBytes(account.Bytes(), 32))},
		},
	}
	logs, err := c.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("can not query transfer events: %w", err)
	}
	transfers := make([]Transfer, 0, len(logs))
	for _, record := range logs {
		if len(record.Topics) < 4 {
			continue
		}
		transfers = append(transfers, Transfer{
			From:        common.BytesToAddress(record.Topics[1].Bytes()),
			To:          common.BytesToAddress(record.Topics[2].Bytes()),
			TokenID:     new(big.Int).SetBytes(record.Topics[3].Bytes()),
			BlockNumber: record.BlockNumber,
		})
	}
	return transfers, nil
}
