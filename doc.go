// Package auth provides stateless token authentication for fiber apps:
// HS256 session tokens, a login flow backed by a bun credential store, a
// public route allow-list, per request auth state and uniform JSON
// failure responses.
//
// Request flow:
//   - jwtware.New binds the request: public paths are skipped, otherwise the
//     token is read from "Authorization: Bearer" or the jwt_token cookie,
//     decoded, and a RequestState is attached. Decode failures never abort
//     the request; they leave it anonymous with a FailureReason.
//   - Guard handlers read that state and answer 401 or 403 through the
//     FailureResponder.
//
// Tokens:
//   - TokenService.Decode returns a tagged DecodeResult. Only a correctly
//     signed token past its exp is DecodeExpired; anything else that fails
//     is DecodeMalformed.
//   - A verified token without authorities binds no Principal.
//
// Startup:
//   - LoadSecret must succeed before anything else is built. The Secret is
//     passed explicitly to TokenService; nothing reads the environment at
//     request time.
package auth
