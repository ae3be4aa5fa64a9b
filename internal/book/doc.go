// Package book normalizes raw orderbook payloads into canonical top-N
// ladders.
//
// Upstream books are heterogeneous: levels arrive either as {price, size}
// objects or [price, size] pairs, and any numeric value may be a string,
// null, NaN, or infinite. Normalization never fails; a malformed level is
// dropped on its own and a malformed book yields empty ladders.
package book
