// Package render prints the lottery session state for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/encrypted-lottery/lottery-deployments/dapp"
	"github.com/encrypted-lottery/lottery-deployments/dapp/state"
)

const (
	EmptyHistory       = "Your rewards will appear here after you run the lottery."
	ConnectToView      = "Connect your wallet to view balances."
	NoRewardsYet       = "Complete a draw to receive encrypted rewards."
	EncryptedBalance   = "Encrypted, decrypt to reveal"
	DecryptingBalance  = "Decrypting…"
	LoadingContracts   = "Loading deployed contracts…"
	historyHashPreview = 10
	historyTimeLayout  = "15:04:05"
)

// ShortAddress abbreviates a hex address to 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}

	return addr[:6] + "..." + addr[len(addr)-4:]
}

// BalanceLabel is the balance column of a token card.
func BalanceLabel(t state.Token, connected bool) string {
	if !connected {
		return ConnectToView
	}
	if v, ok := t.DecryptedValue(); ok {
		return v.String() + " tokens"
	}
	if t.Handle == nil {
		return NoRewardsYet
	}
	if t.Handle.IsZero() {
		return "0 tokens"
	}

	switch t.Phase {
	case state.PhaseDecrypting:
		return DecryptingBalance
	case state.PhaseDecryptFailed:
		return "Decryption failed: " + t.Err
	default:
		return EncryptedBalance
	}
}

// Tokens renders one row per token card.
func Tokens(w io.Writer, s state.State, connected bool) {
	if s.Loading {
		fmt.Fprintln(w, LoadingContracts)
	}
	if s.LoadError != "" {
		fmt.Fprintln(w, "Warning: "+s.LoadError)
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Token", "Symbol", "Address", "Handle", "Balance"})
	for _, t := range s.Tokens {
		symbol := t.Symbol
		if symbol == "" {
			symbol = t.Name
		}
		handle := "-"
		if t.Handle != nil {
			handle = t.Handle.Short()
		}
		table.Append([]string{t.Title, symbol, ShortAddress(t.Address.Hex()), handle, BalanceLabel(t, connected)})
	}
	table.Render()
}

// History renders the recent draws, newest first.
func History(w io.Writer, s state.State) {
	if len(s.History) == 0 {
		fmt.Fprintln(w, EmptyHistory)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Reward", "Amount", "Hash", "Time"})
	for _, r := range s.History {
		heading := r.TokenTitle
		if r.TokenSymbol != "" {
			heading = fmt.Sprintf("%s (%s)", r.TokenTitle, r.TokenSymbol)
		}
		amount := "?"
		if r.Amount != nil {
			amount = r.Amount.String()
		}
		hash := r.TxHash.Hex()
		table.Append([]string{heading, amount, hash[:historyHashPreview] + "…", r.Timestamp.Local().Format(historyTimeLayout)})
	}
	table.Render()
}

// Notices writes every notice as a line prefixed by its severity.
type Notices struct {
	mu sync.Mutex
	w  io.Writer
}

var _ dapp.Notifier = (*Notices)(nil)

// NewNotices creates a Notices printing to w.
func NewNotices(w io.Writer) *Notices {
	return &Notices{w: w}
}

func (n *Notices) Notify(notice dapp.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fmt.Fprintf(n.w, "[%s] %s\n", strings.ToUpper(string(notice.Severity)), notice.Text)
}
