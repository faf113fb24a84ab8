// Package flags provides the flags shared by the lottery CLI commands.
//
// Command-specific flags are defined locally in the command file.
package flags

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// DefaultConfigPath is the config file read when --config is not given.
const DefaultConfigPath = "lottery.yml"

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// MustInt returns the int value, ignoring the error.
// Safe to use with registered flags where GetInt cannot fail.
func MustInt(i int, _ error) int { return i }

// MustUint64 returns the uint64 value, ignoring the error.
// Safe to use with registered flags where GetUint64 cannot fail.
func MustUint64(u uint64, _ error) uint64 { return u }

// Config adds the --config/-c flag. A missing file falls back to environment variables.
// Retrieve the value with cmd.Flags().GetString("config").
func Config(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", DefaultConfigPath, "Path to the lottery config file")
}

// Address adds the optional --address/-a flag overriding the configured TokenLottery address.
// Retrieve the value with Address(cmd) after parsing.
func Address(cmd *cobra.Command) {
	cmd.Flags().StringP("address", "a", "", "Optionally specify the TokenLottery contract address")
}

// LotteryAddress returns the parsed --address value. ok is false when the flag is empty.
func LotteryAddress(cmd *cobra.Command) (addr common.Address, ok bool, err error) {
	raw := MustString(cmd.Flags().GetString("address"))
	if raw == "" {
		return common.Address{}, false, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, false, fmt.Errorf("invalid --address %q", raw)
	}

	return common.HexToAddress(raw), true, nil
}
