package clauses

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	account  = "0x00000000000000000000000000000000000000b2"
	factory  = "0x713b908bcf77f3e00efef328e50b657a1a23aeaf"
	target   = "0x00000000000000000000000000000000000000c3"
	deposit  = "0x00000000000000000000000000000000000000d9"
)

type rejectingSigner struct{}

func (rejectingSigner) SignTypedData(context.Context, apitypes.TypedData) (string, error) {
	return "", errors.New("user rejected request")
}

type garbageSigner struct{}

func (garbageSigner) SignTypedData(context.Context, apitypes.TypedData) (string, error) {
	return "not-hex", nil
}

func version(v int) *int { return &v }

func newTestAssembler(t *testing.T) (*Assembler, *evm.LocalSigner) {
	t.Helper()
	signer, err := evm.NewLocalSignerFromHex(ownerKey)
	require.NoError(t, err)
	return NewAssembler(signer, nil), signer
}

func accountConfig(owner string, deployed, legacy bool, v int) *types.SmartAccountConfig {
	return &types.SmartAccountConfig{
		OwnerAddress:     owner,
		Address:          account,
		Version:          version(v),
		IsDeployed:       deployed,
		HasLegacyAccount: legacy,
		FactoryAddress:   factory,
	}
}

func userClauses(n int) []types.Clause {
	out := make([]types.Clause, n)
	for i := range out {
		out[i] = types.NewClause(target, big.NewInt(int64(i+1)).String(), "0x")
	}
	return out
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name string
		cfg  *types.SmartAccountConfig
		want Strategy
	}{
		{name: "new account", cfg: &types.SmartAccountConfig{Version: version(1)}, want: StrategyBatch},
		{name: "legacy v1", cfg: &types.SmartAccountConfig{HasLegacyAccount: true, Version: version(1)}, want: StrategyIndividual},
		{name: "legacy v2", cfg: &types.SmartAccountConfig{HasLegacyAccount: true, Version: version(2)}, want: StrategyIndividual},
		{name: "legacy v3", cfg: &types.SmartAccountConfig{HasLegacyAccount: true, Version: version(3)}, want: StrategyBatch},
		{name: "legacy unknown version", cfg: &types.SmartAccountConfig{HasLegacyAccount: true}, want: StrategyIndividual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectStrategy(tt.cfg))
		})
	}
}

func TestAssemble_UndeployedBatch(t *testing.T) {
	a, signer := newTestAssembler(t)
	cfg := accountConfig(signer.Address().Hex(), false, false, 3)

	out, err := a.Assemble(context.Background(), userClauses(2), cfg, 45351)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.True(t, strings.EqualFold(factory, *out[0].To))
	deployData, err := hexutil.Decode(out[0].Data)
	require.NoError(t, err)
	expected, err := evm.PackCreateAccount(signer.Address())
	require.NoError(t, err)
	assert.Equal(t, expected, deployData)

	assert.True(t, strings.EqualFold(account, *out[1].To))
	assert.Equal(t, "0", out[1].Value)
	data, err := hexutil.Decode(out[1].Data)
	require.NoError(t, err)
	calls, ok, err := evm.DecodeExecuteCalls(data)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, calls, 2)
	assert.Equal(t, common.HexToAddress(target), calls[0].To)
	assert.Equal(t, int64(2), calls[1].Value.Int64())
}

func TestAssemble_DeployedBatch(t *testing.T) {
	a, signer := newTestAssembler(t)
	cfg := accountConfig(signer.Address().Hex(), true, false, 3)

	out, err := a.Assemble(context.Background(), userClauses(1), cfg, 45351)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, strings.EqualFold(account, *out[0].To))
}

func TestAssemble_LegacyIndividual(t *testing.T) {
	a, signer := newTestAssembler(t)
	cfg := accountConfig(signer.Address().Hex(), true, true, 1)

	out, err := a.Assemble(context.Background(), userClauses(2), cfg, 45351)
	require.NoError(t, err)
	require.Len(t, out, 2)

	executeID := mustMethodID(t, evm.MethodExecuteWithAuth)
	for i, c := range out {
		assert.True(t, strings.EqualFold(account, *c.To))
		data, err := hexutil.Decode(c.Data)
		require.NoError(t, err)
		assert.Equal(t, executeID, data[:4])

		calls, ok, err := evm.DecodeExecuteCalls(data)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, calls, 1)
		assert.Equal(t, int64(i+1), calls[0].Value.Int64(), "clause order must be preserved")
	}
}

func TestAssemble_DeploysOnce(t *testing.T) {
	for _, n := range []int{1, 5} {
		a, signer := newTestAssembler(t)
		cfg := accountConfig(signer.Address().Hex(), false, true, 1)

		out, err := a.Assemble(context.Background(), userClauses(n), cfg, 45351)
		require.NoError(t, err)
		require.Len(t, out, n+1)

		deploys := 0
		for _, c := range out {
			if strings.EqualFold(factory, *c.To) {
				deploys++
			}
		}
		assert.Equal(t, 1, deploys)
		assert.True(t, strings.EqualFold(factory, *out[0].To), "deployment must come first")
	}
}

func TestAssemble_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *types.SmartAccountConfig
		clauses []types.Clause
		want    error
	}{
		{
			name:    "no account",
			cfg:     &types.SmartAccountConfig{OwnerAddress: target},
			clauses: userClauses(1),
			want:    types.ErrWalletNotFound,
		},
		{
			name:    "no clauses",
			cfg:     accountConfig(target, true, false, 3),
			clauses: nil,
			want:    types.ErrBuildingTransaction,
		},
		{
			name:    "contract creation",
			cfg:     accountConfig(target, true, false, 3),
			clauses: []types.Clause{{Value: "0", Data: "0x6080"}},
			want:    types.ErrBuildingTransaction,
		},
	}

	a, _ := newTestAssembler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Assemble(context.Background(), tt.clauses, tt.cfg, 45351)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestAssemble_SignerRejects(t *testing.T) {
	cfg := accountConfig(target, true, false, 3)

	_, err := NewAssembler(rejectingSigner{}, nil).Assemble(context.Background(), userClauses(2), cfg, 45351)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSignatureRejected))

	_, err = NewAssembler(garbageSigner{}, nil).Assemble(context.Background(), userClauses(1), cfg, 45351)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSignatureRejected))
}

func TestAssemble_BatchSignatureFormat(t *testing.T) {
	a, signer := newTestAssembler(t)
	cfg := accountConfig(signer.Address().Hex(), true, false, 3)

	out, err := a.Assemble(context.Background(), userClauses(1), cfg, 45351)
	require.NoError(t, err)
	data, err := hexutil.Decode(out[0].Data)
	require.NoError(t, err)

	parsed, err := evm.AccountABI()
	require.NoError(t, err)
	method := parsed.Methods[evm.MethodExecuteBatchWithAuth]
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	signature, ok := args[len(args)-1].([]byte)
	require.True(t, ok)
	assert.Len(t, signature, 65)
	assert.True(t, signature[64] == 27 || signature[64] == 28)
}

func TestFeeClause(t *testing.T) {
	fee := big.NewInt(1_000_000)

	vet, err := FeeClause(&types.GenericDelegationDetails{Token: constants.TokenVET, DepositAccount: deposit, Fee: fee})
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(deposit, *vet.To))
	assert.Equal(t, "1000000", vet.Value)
	assert.Equal(t, "0x", vet.Data)

	token, err := FeeClause(&types.GenericDelegationDetails{
		Token:          constants.TokenVTHO,
		TokenAddress:   constants.VTHOAddress,
		DepositAccount: deposit,
		Fee:            fee,
	})
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(constants.VTHOAddress, *token.To))
	assert.Equal(t, "0", token.Value)
	data, err := hexutil.Decode(token.Data)
	require.NoError(t, err)
	to, amount, ok := evm.DecodeERC20Transfer(data)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(deposit), to)
	assert.Equal(t, fee, amount)

	_, err = FeeClause(nil)
	assert.Error(t, err)
	_, err = FeeClause(&types.GenericDelegationDetails{DepositAccount: "nope", Fee: fee})
	assert.Error(t, err)
}

func TestWithFeeClause(t *testing.T) {
	user := userClauses(2)
	details := &types.GenericDelegationDetails{Token: constants.TokenVET, DepositAccount: deposit, Fee: big.NewInt(7)}

	out, err := WithFeeClause(user, details)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Len(t, user, 2, "input must not be modified")
	assert.True(t, strings.EqualFold(deposit, *out[2].To))
}

func mustMethodID(t *testing.T, name string) []byte {
	t.Helper()
	parsed, err := evm.AccountABI()
	require.NoError(t, err)
	return parsed.Methods[name].ID
}
