// Package jwtauth issues signed JWTs on successful logins, attaches them to the
// response and revokes them on logout requests through a pluggable revocation
// strategy.
//
// An [Engine] is assembled once with [New] and [Builder.Build] from an immutable
// [Config] and then shared by all requests:
//
//   - Issuance: after the application authenticated a user it calls
//     [Engine.PrepareToken]. The [Matcher] decides from the scope mappings and the
//     dispatch rules whether the request qualifies; if so the token is encoded and
//     stored in the request's token slot.
//   - Dispatch: middleware.Dispatch installs the slot and writes the prepared token
//     into the Authorization header of the response exactly once.
//   - Revocation: middleware.Revoke calls [Engine.RevokeRequest] after the
//     application handled a logout request. Decode failures are observable through
//     metrics, logs and audit events but never fail the response.
//   - Authentication: [Engine.Authenticate] decodes a presented token and consults
//     the revocation strategy.
//
// # What this package must NOT do
//
//   - Verify credentials. The application authenticates users; this package only
//     reacts to a successful authentication.
//   - Fail a login or a logout response because of token issuance or revocation.
//   - Report configuration errors at request time. They surface from Build.
package jwtauth
