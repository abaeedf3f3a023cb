// Package jwt encodes authenticated users into signed access tokens and decodes
// presented tokens back into claims.
//
// # Contract
//
//   - [Codec.Encode] mints a token for a (user, scope, audience) triple. The issued-at
//     time and the token identifier (jti) are fresh on every call.
//   - [Codec.Decode] verifies signature, algorithm, issuer and time-based claims and
//     classifies failures as [ErrMalformed], [ErrInvalid] or [ErrExpired].
//
// # What this package must NOT do
//
//   - Consult revocation state. Validity beyond the signature is layered on top by the
//     revocation strategies.
//   - Know about HTTP requests, scopes mappings or dispatch rules.
package jwt
