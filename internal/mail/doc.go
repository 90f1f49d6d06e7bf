// Package mail sends account-related email, currently just address
// verification links. Delivery goes through whatever Sender the server
// was wired with: a real SMTP relay or, by default, the log.
package mail
