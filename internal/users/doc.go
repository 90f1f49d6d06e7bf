// Package users handles account lifecycle: registration with bcrypt
// password hashing, login with session token issue, and email
// verification via signed links. The messaging core never sees any of
// this; it only receives the resolved user identity per operation.
package users
