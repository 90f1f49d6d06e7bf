// Package auth provides token issuing/verification and the HTTP
// authentication boundary.
//
// Session tokens and email verification tokens are both HS256 JWTs
// signed with the same secret but scoped by a purpose claim, so one can
// never stand in for the other. The HTTP middleware resolves a bearer
// token into an explicit Identity (user ID, username, admin flag) and
// attaches it to the request context; core packages receive identity as
// plain parameters and never inspect request state themselves.
package auth
