package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// EventType names an event handled by Reduce.
type EventType string

const (
	TokensLoadStartedType  EventType = "TOKENS_LOAD_STARTED"
	TokensLoadedType       EventType = "TOKENS_LOADED"
	TokensLoadFailedType   EventType = "TOKENS_LOAD_FAILED"
	FetchStartedType       EventType = "FETCH_STARTED"
	FetchSucceededType     EventType = "FETCH_SUCCEEDED"
	WalletDisconnectedType EventType = "WALLET_DISCONNECTED"
	DecryptStartedType     EventType = "DECRYPT_STARTED"
	DecryptSucceededType   EventType = "DECRYPT_SUCCEEDED"
	DecryptFailedType      EventType = "DECRYPT_FAILED"
	DrawStartedType        EventType = "DRAW_STARTED"
	DrawSubmittedType      EventType = "DRAW_SUBMITTED"
	DrawSettledType        EventType = "DRAW_SETTLED"
	DrawFailedType         EventType = "DRAW_FAILED"
)

// Event is a state transition.
type Event interface {
	Type() EventType
}

type (
	TokensLoadStarted struct{}

	// TokensLoaded replaces the token list. Balances start over.
	TokensLoaded struct {
		Tokens []TokenDescriptor
	}

	// TokensLoadFailed keeps the current list, or installs Fallback when it is empty.
	TokensLoadFailed struct {
		Err      string
		Fallback []TokenDescriptor
	}

	FetchStarted struct{}

	// FetchSucceeded carries the joined result of a balance fan-out. A nil Handle clears the
	// token's balance.
	FetchSucceeded struct {
		Balances []Balance
	}

	WalletDisconnected struct{}

	DecryptStarted struct {
		Token common.Address
	}

	// DecryptSucceeded is ignored unless Handle is still the token's current handle.
	DecryptSucceeded struct {
		Token  common.Address
		Handle fhe.Handle
		Value  *big.Int
	}

	DecryptFailed struct {
		Token common.Address
		Err   string
	}

	DrawStarted struct{}

	DrawSubmitted struct {
		TxHash common.Hash
	}

	// DrawSettled ends a mined draw. Record is nil when the receipt had no reward event.
	DrawSettled struct {
		TxHash common.Hash
		Record *DrawRecord
	}

	DrawFailed struct {
		TxHash common.Hash
		Err    string
	}
)

// Balance is the fetched balance of one token.
type Balance struct {
	Token  common.Address
	Handle *fhe.Handle
}

func (TokensLoadStarted) Type() EventType  { return TokensLoadStartedType }
func (TokensLoaded) Type() EventType       { return TokensLoadedType }
func (TokensLoadFailed) Type() EventType   { return TokensLoadFailedType }
func (FetchStarted) Type() EventType       { return FetchStartedType }
func (FetchSucceeded) Type() EventType     { return FetchSucceededType }
func (WalletDisconnected) Type() EventType { return WalletDisconnectedType }
func (DecryptStarted) Type() EventType     { return DecryptStartedType }
func (DecryptSucceeded) Type() EventType   { return DecryptSucceededType }
func (DecryptFailed) Type() EventType      { return DecryptFailedType }
func (DrawStarted) Type() EventType        { return DrawStartedType }
func (DrawSubmitted) Type() EventType      { return DrawSubmittedType }
func (DrawSettled) Type() EventType        { return DrawSettledType }
func (DrawFailed) Type() EventType         { return DrawFailedType }

// Reduce returns the state after ev. It does not modify s.
func Reduce(s State, ev Event) State {
	s = s.Clone()

	switch e := ev.(type) {
	case TokensLoadStarted:
		s.Loading = true
		s.LoadError = ""
	case TokensLoaded:
		s.Loading = false
		s.LoadError = ""
		s.Tokens = newTokens(e.Tokens)
	case TokensLoadFailed:
		s.Loading = false
		s.LoadError = e.Err
		if len(s.Tokens) == 0 {
			s.Tokens = newTokens(e.Fallback)
		}
	case FetchStarted:
		s.Fetching = true
	case FetchSucceeded:
		s.Fetching = false
		for _, b := range e.Balances {
			updateToken(&s, b.Token, func(t *Token) { applyBalance(t, b.Handle) })
		}
	case WalletDisconnected:
		s.Fetching = false
		for i := range s.Tokens {
			clearBalance(&s.Tokens[i])
		}
	case DecryptStarted:
		updateToken(&s, e.Token, func(t *Token) {
			t.Phase = PhaseDecrypting
			t.Err = ""
		})
	case DecryptSucceeded:
		updateToken(&s, e.Token, func(t *Token) {
			if t.Handle == nil || *t.Handle != e.Handle || e.Value == nil {
				if t.Phase == PhaseDecrypting {
					t.Phase = PhaseEncryptedFetched
				}

				return
			}
			h := e.Handle
			t.Decrypted = new(big.Int).Set(e.Value)
			t.DecryptedFrom = &h
			t.Phase = PhaseDecrypted
			t.Err = ""
		})
	case DecryptFailed:
		updateToken(&s, e.Token, func(t *Token) {
			t.Phase = PhaseDecryptFailed
			t.Err = e.Err
		})
	case DrawStarted:
		s.Draw = Draw{Phase: DrawPhaseSubmitting}
	case DrawSubmitted:
		s.Draw = Draw{Phase: DrawPhaseAwaitingConfirmation, TxHash: e.TxHash}
	case DrawSettled:
		s.Draw = Draw{Phase: DrawPhaseSettled, TxHash: e.TxHash}
		if e.Record != nil {
			s.History = prependRecord(s.History, enrichRecord(s, *e.Record))
			updateToken(&s, e.Record.TokenAddress, invalidateDecrypted)
		}
	case DrawFailed:
		s.Draw = Draw{Phase: DrawPhaseFailed, TxHash: e.TxHash, Err: e.Err}
	}

	return s
}

func newTokens(descriptors []TokenDescriptor) []Token {
	tokens := make([]Token, 0, len(descriptors))
	for _, d := range descriptors {
		tokens = append(tokens, Token{TokenDescriptor: d, Phase: PhaseUnknown})
	}

	return tokens
}

func updateToken(s *State, addr common.Address, fn func(*Token)) {
	for i := range s.Tokens {
		if s.Tokens[i].Address == addr {
			fn(&s.Tokens[i])

			return
		}
	}
}

func applyBalance(t *Token, handle *fhe.Handle) {
	if handle == nil {
		clearBalance(t)

		return
	}

	h := *handle
	t.Handle = &h
	t.Err = ""

	switch {
	case h.IsZero():
		zero := fhe.ZeroHandle
		t.Decrypted = new(big.Int)
		t.DecryptedFrom = &zero
		t.Phase = PhaseZeroShortcut
	case t.DecryptedFrom != nil && *t.DecryptedFrom == h && t.Decrypted != nil:
		t.Phase = PhaseDecrypted
	default:
		t.Decrypted = nil
		t.DecryptedFrom = nil
		if t.Phase != PhaseDecrypting {
			t.Phase = PhaseEncryptedFetched
		}
	}
}

func clearBalance(t *Token) {
	t.Handle = nil
	t.Decrypted = nil
	t.DecryptedFrom = nil
	t.Phase = PhaseUnknown
	t.Err = ""
}

func invalidateDecrypted(t *Token) {
	t.Decrypted = nil
	t.DecryptedFrom = nil
	if t.Handle != nil {
		t.Phase = PhaseEncryptedFetched
	} else {
		t.Phase = PhaseUnknown
	}
}

// enrichRecord fills the token title and symbol from the token list.
func enrichRecord(s State, r DrawRecord) DrawRecord {
	r.Amount = cloneInt(r.Amount)
	if r.TokenTitle != "" {
		return r
	}

	t, ok := s.Token(r.TokenAddress)
	if !ok {
		r.TokenTitle = UnknownTokenTitle

		return r
	}
	r.TokenTitle = t.Title
	r.TokenSymbol = t.Symbol
	if r.TokenSymbol == "" {
		r.TokenSymbol = t.Name
	}

	return r
}

func prependRecord(history []DrawRecord, r DrawRecord) []DrawRecord {
	out := make([]DrawRecord, 0, min(len(history)+1, HistoryLimit))
	out = append(out, r)
	for _, h := range history {
		if len(out) == HistoryLimit {
			break
		}
		out = append(out, h)
	}

	return out
}
