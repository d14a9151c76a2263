package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoUsableNetworks is returned when no network binding could be set up at all.
var ErrNoUsableNetworks = errors.New("no usable networks")

// ErrTxNotSent marks a price update that ended before its transaction was
// signed and handed to the node.
var ErrTxNotSent = errors.New("transaction not sent")

// FetchError reports that a price could not be obtained for an asset.
type FetchError struct {
	Asset Asset
	Cause error
}

func NewFetchError(asset Asset, cause error) *FetchError {
	return &FetchError{Asset: asset, Cause: cause}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Asset, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// SubmissionStage tells at which point a price update transaction failed.
type SubmissionStage string

const (
	// StageRejected means the transaction never made it into the network
	// (signing, estimation or broadcast failed).
	StageRejected SubmissionStage = "rejected before inclusion"

	// StageReverted means the transaction was mined but its execution failed.
	StageReverted SubmissionStage = "reverted on execution"

	// StageUnconfirmed means the transaction may have been broadcast, but its
	// inclusion was not observed. The on-chain effect is unknown.
	StageUnconfirmed SubmissionStage = "confirmation not observed"
)

// SubmissionError reports a failed or unknown price update transaction.
type SubmissionError struct {
	Stage SubmissionStage
	Cause error
}

func NewSubmissionError(stage SubmissionStage, cause error) *SubmissionError {
	return &SubmissionError{Stage: stage, Cause: cause}
}

func (e *SubmissionError) Error() string {
	if e.Cause == nil {
		return string(e.Stage)
	}

	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}
