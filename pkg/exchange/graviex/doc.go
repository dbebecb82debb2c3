// Package graviex implements the Graviex v3 web API.
// It covers the public market data endpoints and the signed account,
// trading and funding endpoints.
//
// The package includes:
//   - Exchange: one method per endpoint plus the exchange.Exchange interface
//   - Normalizer: conversion of Graviex wire structures into core types
//   - request structs validated before any network I/O
//
// Example usage:
//
//	ex, err := graviex.New(core.DefaultConfig().WithCredentials(creds))
//	ticker, err := ex.Ticker(ctx, "giobtc")
package graviex
