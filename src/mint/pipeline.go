// Package mint orchestrates one mint attempt end to end: validate the asset,
// push it through the upload service, submit the mint transaction and wait
// for one confirmation.
package mint

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	app "vibemint/src/app"
)

type State string

const (
	StateIdle              State = "Idle"
	StateValidating        State = "Validating"
	StateUploading         State = "Uploading"
	StateAwaitingSignature State = "AwaitingSignature"
	StateSubmitted         State = "Submitted"
	StateConfirmed         State = "Confirmed"
	StateFailed            State = "Failed"
)

type Reason string

const (
	ReasonNotConnected        Reason = "NotConnected"
	ReasonAlreadyInProgress   Reason = "AlreadyInProgress"
	ReasonInvalidInput        Reason = "InvalidInput"
	ReasonUploadFailed        Reason = "UploadFailed"
	ReasonTransactionRejected Reason = "TransactionRejected"
	ReasonTransactionFailed   Reason = "TransactionFailed"
)

type (
	// Error carries the taxonomy reason alongside the underlying cause.
	Error struct {
		Reason Reason
		Err    error
	}

	// Asset is the user-selected file, held in memory for the duration of
	// one attempt.
	Asset struct {
		Filename    string
		ContentType string
		Content     []byte
	}

	UploadResult struct {
		TokenURI string
		ImageURL string
		Metadata app.Metadata
	}

	// Uploader is the network boundary to the upload service.
	Uploader interface {
		Upload(ctx context.Context, asset Asset, name, description string) (*UploadResult, error)
	}

	// TokenContract is the write surface of the mint contract.
	TokenContract interface {
		Mint(opts *bind.TransactOpts, tokenURI string) (*types.Transaction, error)
		WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	}

	// SignerSource yields transact options for the connected account.
	SignerSource interface {
		Signer() (*bind.TransactOpts, error)
	}

	// Status is the observable pipeline state. TxHash is set from Submitted
	// onwards and preserved on a confirmation failure so the user can look
	// the transaction up.
	Status struct {
		State    State
		Reason   Reason
		TxHash   common.Hash
		TokenURI string
	}

	// Pipeline runs at most one mint attempt at a time.
	Pipeline struct {
		session  SignerSource
		uploader Uploader
		contract TokenContract
		notify   func(Status)

		mu       sync.Mutex
		inFlight bool
		status   Status
	}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// NewPipeline wires the orchestrator. notify may be nil; when set it is
// invoked after every state transition.
func NewPipeline(session SignerSource, uploader Uploader, contract TokenContract, notify func(Status)) *Pipeline {
	return &Pipeline{
		session:  session,
		uploader: uploader,
		contract: contract,
		notify:   notify,
		status:   Status{State: StateIdle},
	}
}

// Status returns the current pipeline status.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Reset returns a terminal pipeline to Idle. It has no effect on an attempt
// that is still in flight.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.status = Status{State: StateIdle}
	snap := p.status
	notify := p.notify
	p.mu.Unlock()
	if notify != nil {
		notify(snap)
	}
}

// Mint runs the whole attempt. A second call while one is in flight is
// rejected with AlreadyInProgress and has no side effects. Calling it from a
// terminal state starts a fresh attempt, which is the explicit reset.
func (p *Pipeline) Mint(ctx context.Context, asset Asset, name, description string) (Status, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return Status{}, &Error{Reason: ReasonAlreadyInProgress}
	}
	p.inFlight = true
	p.status = Status{State: StateIdle}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	opts, err := p.session.Signer()
	if err != nil {
		return p.fail(ReasonNotConnected, err)
	}

	p.transition(func(s *Status) { s.State = StateValidating })
	if err := validate(asset); err != nil {
		return p.fail(ReasonInvalidInput, err)
	}

	p.transition(func(s *Status) { s.State = StateUploading })
	upload, err := p.uploader.Upload(ctx, asset, name, description)
	if err != nil {
		return p.fail(ReasonUploadFailed, err)
	}

	p.transition(func(s *Status) {
		s.State = StateAwaitingSignature
		s.TokenURI = upload.TokenURI
	})
	tx, err := p.contract.Mint(opts, upload.TokenURI)
	if err != nil {
		return p.fail(ReasonTransactionRejected, err)
	}

	p.transition(func(s *Status) {
		s.State = StateSubmitted
		s.TxHash = tx.Hash()
	})
	if _, err := p.contract.WaitMined(ctx, tx); err != nil {
		return p.fail(ReasonTransactionFailed, err)
	}

	p.transition(func(s *Status) { s.State = StateConfirmed })
	return p.Status(), nil
}

// validate mirrors the server-side constraints so bad input never leaves the
// process.
func validate(asset Asset) error {
	if len(asset.Content) == 0 {
		return fmt.Errorf("no file selected")
	}
	if !app.AllowedImageType(asset.ContentType) {
		return fmt.Errorf("unsupported file type %q", asset.ContentType)
	}
	if int64(len(asset.Content)) > app.MaxAssetSize {
		return fmt.Errorf("file exceeds %d bytes", app.MaxAssetSize)
	}
	return nil
}

func (p *Pipeline) transition(mutate func(*Status)) {
	p.mu.Lock()
	mutate(&p.status)
	snap := p.status
	notify := p.notify
	p.mu.Unlock()
	if notify != nil {
		notify(snap)
	}
}

func (p *Pipeline) fail(reason Reason, err error) (Status, error) {
	p.transition(func(s *Status) {
		s.State = StateFailed
		s.Reason = reason
	})
	return p.Status(), &Error{Reason: reason, Err: err}
}
