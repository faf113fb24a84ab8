// Package state holds the lottery session state and the pure reducer that evolves it.
package state

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// HistoryLimit is the number of draws kept in the history, newest first.
const HistoryLimit = 6

// UnknownTokenTitle is the title of a draw record whose token is not in the token list.
const UnknownTokenTitle = "Unknown Token"

// BalancePhase is the decryption phase of a token balance.
type BalancePhase string

const (
	PhaseUnknown          BalancePhase = "unknown"
	PhaseEncryptedFetched BalancePhase = "encrypted"
	PhaseZeroShortcut     BalancePhase = "zero"
	PhaseDecrypting       BalancePhase = "decrypting"
	PhaseDecrypted        BalancePhase = "decrypted"
	PhaseDecryptFailed    BalancePhase = "decrypt_failed"
)

// DrawPhase is the phase of the current draw.
type DrawPhase string

const (
	DrawPhaseIdle                 DrawPhase = "idle"
	DrawPhaseSubmitting           DrawPhase = "submitting"
	DrawPhaseAwaitingConfirmation DrawPhase = "awaiting_confirmation"
	DrawPhaseSettled              DrawPhase = "settled"
	DrawPhaseFailed               DrawPhase = "failed"
)

// InFlight reports whether a draw in this phase has not settled yet.
func (p DrawPhase) InFlight() bool {
	return p == DrawPhaseSubmitting || p == DrawPhaseAwaitingConfirmation
}

// TokenDescriptor identifies a token. Addresses compare case-insensitively since they are
// compared as bytes.
type TokenDescriptor struct {
	Address common.Address
	Title   string
	Name    string
	Symbol  string
}

// Token is a token with the connected wallet's balance.
type Token struct {
	TokenDescriptor

	// Handle is the encrypted balance. Nil when not fetched.
	Handle *fhe.Handle
	// Decrypted is the clear balance. It is only set while DecryptedFrom equals Handle.
	Decrypted     *big.Int
	DecryptedFrom *fhe.Handle
	Phase         BalancePhase
	// Err is the last decryption error.
	Err string
}

// DecryptedValue returns the clear balance when it belongs to the current handle.
func (t Token) DecryptedValue() (*big.Int, bool) {
	if t.Decrypted == nil || t.Handle == nil || t.DecryptedFrom == nil || *t.Handle != *t.DecryptedFrom {
		return nil, false
	}

	return t.Decrypted, true
}

// DrawRecord is a settled draw that emitted a reward.
type DrawRecord struct {
	TxHash       common.Hash
	Player       common.Address
	TokenAddress common.Address
	TokenTitle   string
	TokenSymbol  string
	Amount       *big.Int
	Timestamp    time.Time
}

// Draw is the state of the current or last draw.
type Draw struct {
	Phase  DrawPhase
	TxHash common.Hash
	Err    string
}

// State is the whole session state.
type State struct {
	Tokens    []Token
	History   []DrawRecord
	Draw      Draw
	Loading   bool
	LoadError string
	Fetching  bool
}

// New returns the initial state.
func New() State {
	return State{Draw: Draw{Phase: DrawPhaseIdle}}
}

// Token returns the token with the given address.
func (s State) Token(addr common.Address) (Token, bool) {
	for _, t := range s.Tokens {
		if t.Address == addr {
			return t, true
		}
	}

	return Token{}, false
}

// Descriptors returns the descriptors of the listed tokens.
func (s State) Descriptors() []TokenDescriptor {
	out := make([]TokenDescriptor, 0, len(s.Tokens))
	for _, t := range s.Tokens {
		out = append(out, t.TokenDescriptor)
	}

	return out
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Tokens = make([]Token, len(s.Tokens))
	for i, t := range s.Tokens {
		out.Tokens[i] = t.clone()
	}
	out.History = make([]DrawRecord, len(s.History))
	for i, r := range s.History {
		r.Amount = cloneInt(r.Amount)
		out.History[i] = r
	}

	return out
}

func (t Token) clone() Token {
	out := t
	out.Handle = cloneHandle(t.Handle)
	out.DecryptedFrom = cloneHandle(t.DecryptedFrom)
	out.Decrypted = cloneInt(t.Decrypted)

	return out
}

func cloneHandle(h *fhe.Handle) *fhe.Handle {
	if h == nil {
		return nil
	}
	c := *h

	return &c
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}

	return new(big.Int).Set(v)
}
