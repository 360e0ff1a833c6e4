// Package authcore provides the account and token lifecycle for PricePulse
// services: signup with email verification, password and federated sign-in,
// refresh token sessions, and password reset.
//
// Token model:
//   - Access and refresh tokens are both HS256 JWTs with identical claim
//     shapes, signed with two distinct secrets. A token's kind is proven by
//     which secret verifies it, never by inspecting the payload.
//   - Every refresh token is backed by a Session row. Refresh validation
//     checks the signature AND the stored session, so revocation takes
//     effect immediately. Rotation retires the presented token with a single
//     conditional update; concurrent rotation has exactly one winner.
//
// Ephemeral tokens:
//   - Email verification and password reset use single-use random tokens
//     with a derived 6 digit short code, stored on the user row (one pending
//     token per purpose). Expiry is checked at consumption, and a
//     conditional clear guarantees single use under concurrency.
//
// Audit sinks:
//   - AuditSink is a light-weight emitter used by Auther to describe signup,
//     login, logout, verification, password reset and profile events. Sinks
//     run best-effort (errors are logged) so you can forward to a database
//     or queue without blocking authentication.
package authcore
