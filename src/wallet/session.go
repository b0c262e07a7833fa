package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	cfg "vibemint/src/configuration"
)

type (
	// Snapshot is the read-only view of the session handed to subscribers and
	// callers. Once returned it never mutates.
	Snapshot struct {
		Account    common.Address
		ChainID    *big.Int
		Connected  bool
		Connecting bool
	}

	// Session owns the connection to the signing provider. All components
	// read it; only Connect, Disconnect and the provider change notifications
	// write it, and every write funnels through one apply path.
	Session struct {
		rpcURL          string
		expectedChainID int64
		rawKey          string

		mu          sync.Mutex
		privateKey  *ecdsa.PrivateKey
		client      *ethclient.Client
		snapshot    Snapshot
		subscribers map[int]func(Snapshot)
		nextSub     int
	}
)

func NewSession(config *cfg.Properties) *Session {
	return &Session{
		rpcURL:          config.Chain.RPCURL,
		expectedChainID: config.Chain.ID,
		rawKey:          config.Chain.PrivateKey,
		subscribers:     make(map[int]func(Snapshot)),
	}
}

// Connect dials the RPC endpoint, loads the signing key when one is
// configured and reads the chain id. A session without a key is read-only:
// usable for queries, not for signing.
func (s *Session) Connect(ctx context.Context) error {
	s.apply(func(snap *Snapshot) { snap.Connecting = true })

	client, err := ethclient.DialContext(ctx, s.rpcURL)
	if err != nil {
		s.apply(func(snap *Snapshot) { snap.Connecting = false })
		return fmt.Errorf("can not dial rpc %s: %w", s.rpcURL, err)
	}

	var privateKey *ecdsa.PrivateKey
	var account common.Address
	if s.rawKey != "" {
		privateKey, err = crypto.HexToECDSA(strings.TrimPrefix(s.rawKey, "0x"))
		if err != nil {
			client.Close()
			s.apply(func(snap *Snapshot) { snap.Connecting = false })
			return fmt.Errorf("can not load private key: %w", err)
		}
		account = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		s.apply(func(snap *Snapshot) { snap.Connecting = false })
		return fmt.Errorf("can not read chain id: %w", err)
	}
	if chainID.Int64() != s.expectedChainID {
		log.Printf("connected to chain %s, expected %d", chainID, s.expectedChainID)
	}

	s.mu.Lock()
	s.client = client
	s.privateKey = privateKey
	s.mu.Unlock()
	s.apply(func(snap *Snapshot) {
		snap.Account = account
		snap.ChainID = chainID
		snap.Connected = true
		snap.Connecting = false
	})
	return nil
}

// Disconnect drops the connection and clears the session state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.client != nil {
		s.client.Close()
	}
	s.client = nil
	s.privateKey = nil
	s.mu.Unlock()
	s.apply(func(snap *Snapshot) { *snap = Snapshot{} })
}

// HandleAccountsChanged mirrors the provider notification: an empty account
// list tears the session down, otherwise the first entry becomes current.
func (s *Session) HandleAccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		s.Disconnect()
		return
	}
	s.apply(func(snap *Snapshot) { snap.Account = accounts[0] })
}

// HandleChainChanged mirrors the provider notification for a chain switch.
func (s *Session) HandleChainChanged(chainID *big.Int) {
	s.apply(func(snap *Snapshot) { snap.ChainID = chainID })
}

// Subscribe registers a state-change listener and returns its cancel func.
// The owner of the subscription must cancel it at teardown.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Current returns the session snapshot.
func (s *Session) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Signer builds transact options bound to the session key and chain.
func (s *Session) Signer() (*bind.TransactOpts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snapshot.Connected || s.privateKey == nil {
		return nil, fmt.Errorf("session has no usable signer")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.privateKey, s.snapshot.ChainID)
	if err != nil {
		return nil, fmt.Errorf("can not build transactor: %w", err)
	}
	return opts, nil
}

// Backend exposes the RPC client for contract calls; nil when disconnected.
func (s *Session) Backend() *ethclient.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// apply is the single writer path: mutate under the lock, then notify the
// subscribers with the new snapshot outside of it.
func (s *Session) apply(mutate func(*Snapshot)) {
	s.mu.Lock()
	mutate(&s.snapshot)
	snap := s.snapshot
	listeners := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
