package delegation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/types"
	"github.com/sigweihq/smartwallet/pkg/utils"
)

// GenericClient talks to a generic delegator service that sponsors transactions
// in exchange for a fee paid in VET or a token
type GenericClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGenericClient creates a client for the delegator at baseURL.
// If httpClient is nil, a client with default timeouts will be used.
func NewGenericClient(baseURL string, httpClient *http.Client) (*GenericClient, error) {
	if err := utils.ValidateDelegatorURL(baseURL); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = utils.CreateHTTPClientWithTimeouts()
	}
	return &GenericClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// Sign asks the delegator to add its fee and co-sign the transaction
func (c *GenericClient) Sign(ctx context.Context, req *types.GenericSignRequest) (*types.GenericSignResponse, error) {
	resp, err := utils.MakeJSONRequest[types.GenericSignResponse](
		ctx,
		c.httpClient,
		http.MethodPost,
		utils.JoinURL(c.baseURL, constants.GenericDelegatorSignPath),
		req,
		"sign",
	)
	if err != nil {
		return nil, fmt.Errorf("generic delegator sign failed: %w", err)
	}
	return resp, nil
}

// Estimate returns the fee the delegator charges for the clauses
func (c *GenericClient) Estimate(ctx context.Context, req *types.GenericEstimateRequest) (*types.GenericEstimateResponse, error) {
	resp, err := utils.MakeJSONRequest[types.GenericEstimateResponse](
		ctx,
		c.httpClient,
		http.MethodPost,
		utils.JoinURL(c.baseURL, constants.GenericDelegatorEstimatePath),
		req,
		"estimate",
	)
	if err != nil {
		return nil, fmt.Errorf("generic delegator estimate failed: %w", err)
	}
	return resp, nil
}

// Rates returns the delegator's token conversion rates and service fee
func (c *GenericClient) Rates(ctx context.Context) (*types.RatesResponse, error) {
	resp, err := utils.MakeJSONRequest[types.RatesResponse](
		ctx,
		c.httpClient,
		http.MethodGet,
		utils.JoinURL(c.baseURL, constants.GenericDelegatorRatesPath),
		nil,
		"rates",
	)
	if err != nil {
		return nil, fmt.Errorf("generic delegator rates failed: %w", err)
	}
	return resp, nil
}

// EstimateClauses converts clauses to the delegator's estimate format
func EstimateClauses(clauses []types.Clause) ([]types.GenericEstimateClause, error) {
	out := make([]types.GenericEstimateClause, 0, len(clauses))
	for i, c := range clauses {
		n, err := c.Normalize()
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		out = append(out, types.GenericEstimateClause{To: n.To, Value: n.Value, Data: n.Data})
	}
	return out, nil
}
