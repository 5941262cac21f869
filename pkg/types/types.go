package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// SmartAccountConfig describes the contract wallet owned by an externally owned account
type SmartAccountConfig struct {
	OwnerAddress     string `json:"ownerAddress"`
	Address          string `json:"address,omitempty"` // empty when no smart account could be resolved
	Version          *int   `json:"version,omitempty"`
	VersionDefaulted bool   `json:"versionDefaulted"` // version read failed and the default was applied
	IsDeployed       bool   `json:"isDeployed"`
	HasLegacyAccount bool   `json:"hasLegacyAccount"`
	FactoryAddress   string `json:"factoryAddress"`
}

// HasAccount reports whether a smart account address was resolved
func (c *SmartAccountConfig) HasAccount() bool {
	return c != nil && c.Address != ""
}

// DelegationType selects how transaction fees are delegated to a third party
type DelegationType string

const (
	DelegationNone    DelegationType = "NONE"
	DelegationURL     DelegationType = "URL"
	DelegationAccount DelegationType = "ACCOUNT"
	DelegationGeneric DelegationType = "GENERIC"
)

// GenericDelegationDetails is the fee a generic delegator charges for sponsoring a transaction
type GenericDelegationDetails struct {
	Token          string   `json:"token"`        // VET, VTHO, B3TR
	TokenAddress   string   `json:"tokenAddress"` // empty for VET
	DepositAccount string   `json:"depositAccount"`
	Fee            *big.Int `json:"fee"` // in the token's smallest unit
}

// IsVET reports whether the fee is paid in the native token
func (d *GenericDelegationDetails) IsVET() bool {
	return d.TokenAddress == ""
}

// SponsorRequest is posted to a fee delegation URL
type SponsorRequest struct {
	Origin string `json:"origin"` // lowercase origin address
	Raw    string `json:"raw"`    // 0x-prefixed unsigned transaction
}

// SponsorResponse is returned by a fee delegation URL
type SponsorResponse struct {
	Signature string `json:"signature"`
}

// GenericSignRequest is posted to a generic delegator
type GenericSignRequest struct {
	Origin      string `json:"origin"`
	Raw         string `json:"raw"`
	Token       string `json:"token"`
	NetworkType string `json:"networkType"`
}

// GenericSignResponse carries the delegator's rewritten transaction and its signature
type GenericSignResponse struct {
	Raw       string `json:"raw"`
	Signature string `json:"signature"`
}

// GenericEstimateClause is the JSON form of a clause sent for fee estimation
type GenericEstimateClause struct {
	To    *string `json:"to"`
	Value string  `json:"value"`
	Data  string  `json:"data"`
}

// GenericEstimateRequest asks a generic delegator for its fee
type GenericEstimateRequest struct {
	Clauses []GenericEstimateClause `json:"clauses"`
	Signer  string                  `json:"signer"`
	Token   string                  `json:"token"`
}

// GenericEstimateResponse lists the fee per speed and where to pay it
type GenericEstimateResponse struct {
	DepositAccount  string                     `json:"depositAccount"`
	Token           string                     `json:"token"`
	TransactionCost map[string]decimal.Decimal `json:"transactionCost"`
}

// TokenRates are the delegator's conversion rates from VTHO
type TokenRates struct {
	VTHO decimal.Decimal `json:"vtho"`
	VET  decimal.Decimal `json:"vet"`
	B3TR decimal.Decimal `json:"b3tr"`
}

// RatesResponse is returned by the generic delegator rates endpoint
type RatesResponse struct {
	Rate       TokenRates      `json:"rate"`
	ServiceFee decimal.Decimal `json:"serviceFee"`
}

// GasPrices holds an optional gas price per speed in wei
type GasPrices struct {
	Regular *big.Int
	Medium  *big.Int
	High    *big.Int
}
