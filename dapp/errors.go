package dapp

import (
	"errors"
	"fmt"
)

// Every error returned by this package wraps exactly one of these.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrNetwork            = errors.New("network error")
	ErrAuthorization      = errors.New("authorization error")
	ErrSDKNotReady        = errors.New("encryption client is not ready")
	ErrTransaction        = errors.New("transaction error")
	ErrEventNotFound      = errors.New("reward event not found")
	ErrDrawInProgress     = errors.New("a draw is already in progress")
	ErrNoEncryptedBalance = errors.New("no encrypted balance")
)

// Message is the user-facing text of a notice. The underlying cause is appended by Error.
type Message string

const (
	MsgLotteryNotConfigured   Message = "Lottery contract configuration is missing. Update the lottery address with the deployed value."
	MsgLoadTokensFailed       Message = "Failed to load lottery configuration"
	MsgConnectToDraw          Message = "Connect your wallet to run the lottery."
	MsgConnectToDecrypt       Message = "Connect your wallet to decrypt balances."
	MsgNoEncryptedBalance     Message = "No encrypted balance found for this token yet."
	MsgSDKInitializing        Message = "Encryption services are still initializing. Please try again in a moment."
	MsgSignerRequired         Message = "A signer is required to decrypt balances."
	MsgNoDrawSigner           Message = "No signer available from wallet."
	MsgDrawInProgress         Message = "A draw is already in progress."
	MsgDrawFailed             Message = "Lottery draw failed"
	MsgDrawRewardNotFound     Message = "Draw confirmed but no LotteryReward event was found."
	MsgDecryptFailed          Message = "Failed to decrypt balance"
	MsgBalanceFetchIncomplete Message = "Some balances could not be read and were cleared."
)

// Error is an error carrying the notice shown to the user.
type Error struct {
	// Kind is one of the package sentinels.
	Kind    error
	Message Message
	Cause   error
}

func newError(kind error, msg Message, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap returns the kind and the cause, so both match errors.Is.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}
