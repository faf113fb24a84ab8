package contracts

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPlayer = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testToken  = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func rewardLog(t *testing.T, player, token common.Address, amount int64) *types.Log {
	t.Helper()

	event := LotteryABI.Events[LotteryRewardEvent]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(amount))
	require.NoError(t, err)

	return &types.Log{
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(player.Bytes()),
			common.BytesToHash(token.Bytes()),
		},
		Data: data,
	}
}

func Test_ParseLotteryReward(t *testing.T) {
	t.Parallel()

	got, err := ParseLotteryReward(*rewardLog(t, testPlayer, testToken, 42))
	require.NoError(t, err)
	assert.Equal(t, testPlayer, got.Player)
	assert.Equal(t, testToken, got.Token)
	assert.Equal(t, int64(42), got.Amount.Int64())

	_, err = ParseLotteryReward(types.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	require.Error(t, err)

	_, err = ParseLotteryReward(types.Log{})
	require.Error(t, err)
}

func Test_FindLotteryReward(t *testing.T) {
	t.Parallel()

	unrelated := &types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}, Data: []byte{1}}
	malformed := rewardLog(t, testPlayer, testToken, 1)
	malformed.Data = []byte{1, 2}

	tests := []struct {
		name       string
		give       []*types.Log
		wantAmount int64
		wantErr    error
	}{
		{
			name:       "reward after unrelated logs",
			give:       []*types.Log{unrelated, nil, malformed, rewardLog(t, testPlayer, testToken, 7)},
			wantAmount: 7,
		},
		{
			name:       "first reward wins",
			give:       []*types.Log{rewardLog(t, testPlayer, testToken, 3), rewardLog(t, testPlayer, testToken, 9)},
			wantAmount: 3,
		},
		{
			name:    "no reward",
			give:    []*types.Log{unrelated},
			wantErr: ErrRewardNotFound,
		},
		{
			name:    "empty receipt",
			wantErr: ErrRewardNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := FindLotteryReward(tt.give)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, got.Amount.Int64())
		})
	}
}

func Test_HardhatArtifacts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "artifacts", "contracts", "TokenLottery.sol")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	artifactJSON := `{
		"_format": "hh-sol-artifact-1",
		"contractName": "TokenLottery",
		"sourceName": "contracts/TokenLottery.sol",
		"abi": ` + TokenLotteryABI + `,
		"bytecode": "0x6080604052"
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "TokenLottery.json"), []byte(artifactJSON), 0o600))

	src := HardhatArtifacts{Root: root}

	art, err := src.Artifact(TokenLotteryName)
	require.NoError(t, err)
	assert.Equal(t, "TokenLottery", art.ContractName)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, []byte(art.Bytecode))
	assert.Contains(t, art.ABI.Methods, "draw")
	assert.Contains(t, art.ABI.Events, LotteryRewardEvent)

	_, err = src.Artifact("ERC7984USDT")
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func Test_StaticArtifacts(t *testing.T) {
	t.Parallel()

	src := StaticArtifacts{TokenLotteryName: {ContractName: TokenLotteryName, ABI: *LotteryABI}}

	art, err := src.Artifact(TokenLotteryName)
	require.NoError(t, err)
	assert.Equal(t, TokenLotteryName, art.ContractName)

	_, err = src.Artifact("missing")
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func Test_ABIs(t *testing.T) {
	t.Parallel()

	for _, m := range []string{"draw", "getSupportedTokens", "getTokenCount"} {
		assert.Contains(t, LotteryABI.Methods, m)
	}
	for _, m := range []string{"name", "symbol", "decimals", "confidentialBalanceOf", "mint"} {
		assert.Contains(t, TokenABI.Methods, m)
	}
	assert.Len(t, TokenNames, 5)
}
