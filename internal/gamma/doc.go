// Package gamma consumes the Gamma market-metadata API.
//
// Payload field names vary across API versions (endTime vs end_date,
// closed vs isClosed, ...). NormalizeMarket resolves each logical
// attribute through an explicit ordered list of candidate keys; the first
// key present wins. Raw payloads are retained verbatim for persistence.
package gamma
