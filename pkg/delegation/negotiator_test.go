package delegation

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sigweihq/smartwallet/pkg/chains/evm"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/metrics"
	"github.com/sigweihq/smartwallet/pkg/transaction"
	"github.com/sigweihq/smartwallet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSigner(t *testing.T, key string) *evm.LocalSigner {
	t.Helper()
	s, err := evm.NewLocalSignerFromHex(key)
	require.NoError(t, err)
	return s
}

func eoaRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		Body:        testBody(vetTransfer(recipient, 1)),
		Sender:      mustSigner(t, senderKeyHex).Address(),
		NetworkType: constants.NetworkTestnet,
	}
}

// recoverDelegator checks out.Signature was produced over the delegator hash for delegateFor
func recoverDelegator(t *testing.T, out Outcome, delegateFor common.Address) common.Address {
	t.Helper()
	require.Equal(t, OutcomeSigned, out.Kind, "outcome error: %v", out.Err)
	addr, err := delegatorAddress(out.Body, out.Signature, delegateFor)
	require.NoError(t, err)
	return addr
}

func TestNegotiate_None(t *testing.T) {
	n := NewNegotiator(nil, nil)
	assert.Equal(t, OutcomeNone, n.Negotiate(context.Background(), Options{}, eoaRequest(t)).Kind)
	assert.Equal(t, OutcomeNone, n.Negotiate(context.Background(), Options{Type: types.DelegationNone}, eoaRequest(t)).Kind)
}

func TestNegotiate_URL(t *testing.T) {
	delegator := mustSigner(t, delegatorKeyHex)
	req := eoaRequest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body types.SponsorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, strings.ToLower(req.Sender.Hex()), body.Origin)

		raw, err := hexutil.Decode(body.Raw)
		require.NoError(t, err)
		decoded, _, err := transaction.Decode(raw)
		require.NoError(t, err)
		hash, err := decoded.SigningHash()
		require.NoError(t, err)
		origin := common.HexToAddress(body.Origin)
		sig, err := delegator.SignTransactionHash(r.Context(), hash, &origin)
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(types.SponsorResponse{Signature: hexutil.Encode(sig)})
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	n := NewNegotiator(server.Client(), nil).WithMetrics(m)

	out := n.Negotiate(context.Background(), Options{Type: types.DelegationURL, URL: server.URL}, req)
	assert.Equal(t, delegator.Address(), recoverDelegator(t, out, req.Sender))
	assert.Same(t, req.Body, out.Body)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DelegationsTotal.WithLabelValues("URL", "signed")))
}

func TestNegotiate_URLFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		url     string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "empty signature",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"signature":""}`))
			},
		},
		{
			name: "short signature",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"signature":"0xdeadbeef"}`))
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
		{
			name: "missing url",
			url:  "-",
		},
		{
			name: "insecure url",
			url:  "http://sponsor.example.org",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := tt.url
			client := http.DefaultClient
			if tt.handler != nil {
				server := httptest.NewServer(tt.handler)
				defer server.Close()
				url = server.URL
				client = server.Client()
			}
			if url == "-" {
				url = ""
			}

			out := NewNegotiator(client, nil).Negotiate(context.Background(), Options{Type: types.DelegationURL, URL: url}, eoaRequest(t))
			assert.Equal(t, OutcomeFailure, out.Kind)
			assert.Error(t, out.Err)
			assert.Nil(t, out.Signature)
		})
	}
}

func TestNegotiate_Account(t *testing.T) {
	delegator := mustSigner(t, delegatorKeyHex)
	owner := mustSigner(t, senderKeyHex).Address()

	key, err := crypto.HexToECDSA(strings.TrimPrefix(delegatorKeyHex, "0x"))
	require.NoError(t, err)
	keyJSON, err := keystore.EncryptKey(&keystore.Key{Address: delegator.Address(), PrivateKey: key}, "secret", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	t.Run("smart wallet delegator signs for the owner", func(t *testing.T) {
		req := eoaRequest(t)
		req.IsSmartAccount = true
		req.Owner = owner
		opts := Options{Type: types.DelegationAccount, Account: &DelegatorAccount{
			Address: delegator.Address().Hex(),
			Device:  DeviceSmartWallet,
			Signer:  delegator,
		}}

		out := NewNegotiator(nil, nil).Negotiate(context.Background(), opts, req)
		assert.Equal(t, delegator.Address(), recoverDelegator(t, out, owner))
	})

	t.Run("local key delegator decrypts with password", func(t *testing.T) {
		req := eoaRequest(t)
		req.Password = "secret"
		opts := Options{Type: types.DelegationAccount, Account: &DelegatorAccount{
			Address:      delegator.Address().Hex(),
			Device:       DeviceLocal,
			EncryptedKey: keyJSON,
		}}

		out := NewNegotiator(nil, nil).Negotiate(context.Background(), opts, req)
		assert.Equal(t, delegator.Address(), recoverDelegator(t, out, req.Sender))
	})

	t.Run("wrong password", func(t *testing.T) {
		req := eoaRequest(t)
		req.Password = "nope"
		opts := Options{Type: types.DelegationAccount, Account: &DelegatorAccount{Device: DeviceLocal, EncryptedKey: keyJSON}}

		out := NewNegotiator(nil, nil).Negotiate(context.Background(), opts, req)
		assert.Equal(t, OutcomeFailure, out.Kind)
	})

	t.Run("hardware delegator is refused", func(t *testing.T) {
		opts := Options{Type: types.DelegationAccount, Account: &DelegatorAccount{Device: DeviceHardware, Signer: delegator}}

		out := NewNegotiator(nil, nil).Negotiate(context.Background(), opts, eoaRequest(t))
		assert.Equal(t, OutcomeFailure, out.Kind)
		assert.True(t, errors.Is(out.Err, ErrHardwareDelegator))
	})

	t.Run("key does not match account", func(t *testing.T) {
		opts := Options{Type: types.DelegationAccount, Account: &DelegatorAccount{
			Address: owner.Hex(),
			Device:  DeviceSmartWallet,
			Signer:  delegator,
		}}

		out := NewNegotiator(nil, nil).Negotiate(context.Background(), opts, eoaRequest(t))
		assert.Equal(t, OutcomeFailure, out.Kind)
	})

	t.Run("no account", func(t *testing.T) {
		out := NewNegotiator(nil, nil).Negotiate(context.Background(), Options{Type: types.DelegationAccount}, eoaRequest(t))
		assert.True(t, errors.Is(out.Err, ErrMissingAccount))
	})
}

// genericServer appends the fee to the request body the way a generic delegator does,
// letting tamper rewrite the body before signing
func genericServer(t *testing.T, delegator *evm.LocalSigner, fee transaction.Clause, appendFee bool, tamper func(*transaction.Body)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != constants.GenericDelegatorSignPath {
			http.NotFound(w, r)
			return
		}
		var req types.GenericSignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, constants.NetworkTestnet, req.NetworkType)

		raw, err := hexutil.Decode(req.Raw)
		require.NoError(t, err)
		body, _, err := transaction.Decode(raw)
		require.NoError(t, err)

		if appendFee {
			body.Clauses = append(body.Clauses, fee)
		}
		body.Gas += 20000
		if tamper != nil {
			tamper(body)
		}

		hash, err := body.SigningHash()
		require.NoError(t, err)
		origin := common.HexToAddress(req.Origin)
		sig, err := delegator.SignTransactionHash(r.Context(), hash, &origin)
		require.NoError(t, err)
		encoded, err := body.Encode()
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(types.GenericSignResponse{Raw: hexutil.Encode(encoded), Signature: hexutil.Encode(sig)})
	}))
}

func TestNegotiate_Generic(t *testing.T) {
	delegator := mustSigner(t, delegatorKeyHex)

	tests := []struct {
		name       string
		fee        func(t *testing.T) transaction.Clause
		details    *types.GenericDelegationDetails
		smart      bool
		appendFee  bool
		tamper     func(*transaction.Body)
		wantReason Reason
	}{
		{
			name:      "VET fee accepted",
			fee:       func(t *testing.T) transaction.Clause { return vetTransfer(depositAccount, 100) },
			details:   vetDetails(99),
			appendFee: true,
		},
		{
			name:      "B3TR fee accepted",
			fee:       func(t *testing.T) transaction.Clause { return tokenTransfer(t, b3tr, depositAccount, 100) },
			details:   b3trDetails(100),
			appendFee: true,
		},
		{
			name:       "fee over estimate",
			fee:        func(t *testing.T) transaction.Clause { return vetTransfer(depositAccount, 100) },
			details:    vetDetails(80),
			appendFee:  true,
			wantReason: ReasonOverThreshold,
		},
		{
			name:       "user clause rewritten",
			fee:        func(t *testing.T) transaction.Clause { return vetTransfer(depositAccount, 100) },
			details:    vetDetails(100),
			appendFee:  true,
			tamper:     func(b *transaction.Body) { b.Clauses[0].Value = big.NewInt(1_000_000) },
			wantReason: ReasonClausesDiff,
		},
		{
			name:       "nonce changed",
			fee:        func(t *testing.T) transaction.Clause { return vetTransfer(depositAccount, 100) },
			details:    vetDetails(100),
			appendFee:  true,
			tamper:     func(b *transaction.Body) { b.Nonce++ },
			wantReason: ReasonBodyMismatch,
		},
		{
			name:       "smart account body extended",
			fee:        func(t *testing.T) transaction.Clause { return vetTransfer(depositAccount, 100) },
			details:    vetDetails(100),
			smart:      true,
			appendFee:  true,
			wantReason: ReasonClausesDiff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := genericServer(t, delegator, tt.fee(t), tt.appendFee, tt.tamper)
			defer server.Close()

			req := eoaRequest(t)
			req.IsSmartAccount = tt.smart
			req.Owner = req.Sender
			opts := Options{Type: types.DelegationGeneric, Generic: &GenericOptions{BaseURL: server.URL, Details: *tt.details}}

			out := NewNegotiator(server.Client(), nil).Negotiate(context.Background(), opts, req)
			if tt.wantReason != "" {
				require.Equal(t, OutcomeFailure, out.Kind)
				assert.Equal(t, tt.wantReason, reasonOf(t, out.Err))
				return
			}

			assert.Equal(t, delegator.Address(), recoverDelegator(t, out, req.Sender))
			require.Len(t, out.Body.Clauses, 2)
			assert.Equal(t, req.Body.Gas+20000, out.Body.Gas)
		})
	}
}

func TestNegotiate_GenericSmartAccount(t *testing.T) {
	delegator := mustSigner(t, delegatorKeyHex)
	owner := mustSigner(t, senderKeyHex).Address()

	req := Request{
		Body:           testBody(executeBatch(t, evm.MethodExecuteBatchWithAuth, vetTransfer(recipient, 1), vetTransfer(depositAccount, 100))),
		Sender:         owner,
		Owner:          owner,
		IsSmartAccount: true,
		NetworkType:    constants.NetworkTestnet,
	}
	server := genericServer(t, delegator, transaction.Clause{}, false, nil)
	defer server.Close()

	opts := Options{Type: types.DelegationGeneric, Generic: &GenericOptions{BaseURL: server.URL, Details: *vetDetails(100)}}
	out := NewNegotiator(server.Client(), nil).Negotiate(context.Background(), opts, req)
	assert.Equal(t, delegator.Address(), recoverDelegator(t, out, owner))
	assert.Len(t, out.Body.Clauses, 1)
}

func TestNegotiate_GenericUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	opts := Options{Type: types.DelegationGeneric, Generic: &GenericOptions{BaseURL: url, Details: *vetDetails(1)}}
	out := NewNegotiator(nil, nil).Negotiate(context.Background(), opts, eoaRequest(t))
	assert.Equal(t, OutcomeFailure, out.Kind)

	out = NewNegotiator(nil, nil).Negotiate(context.Background(), Options{Type: types.DelegationGeneric}, eoaRequest(t))
	assert.True(t, errors.Is(out.Err, ErrMissingGeneric))
}

func TestRequest_DelegateFor(t *testing.T) {
	sender := common.HexToAddress("0x01")
	owner := common.HexToAddress("0x02")

	assert.Equal(t, sender, Request{Sender: sender, Owner: owner}.DelegateFor())
	assert.Equal(t, owner, Request{Sender: sender, Owner: owner, IsSmartAccount: true}.DelegateFor())
	assert.Equal(t, sender, Request{Sender: sender, IsSmartAccount: true}.DelegateFor())
}
