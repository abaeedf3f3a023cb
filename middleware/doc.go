// Package middleware adapts jwtauth.Engine to net/http.
//
//   - [Dispatch] gives every request a token slot and writes a prepared token into
//     the Authorization header of the response.
//   - [Revoke] revokes the presented bearer token after the handler served a
//     request on the revocation path.
//   - [Guard] rejects requests without a valid, unrevoked bearer token and injects
//     the [jwtauth.AuthResult]. [RequireScope] narrows it to one scope.
//   - [Correlation], [Logging] and [Recover] provide request-scoped zerolog
//     loggers that the engine picks up from the context.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Turn issuance or revocation failures into error responses.
package middleware
