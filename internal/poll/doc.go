// Package poll implements the client-driven message delivery protocol.
//
// There is no push channel: clients repeatedly ask "what's new in room R
// after message ID N" and the server answers with at most one message -
// the earliest one past the cursor - or nothing. Returning a single
// message bounds response size and keeps client state down to one
// number, the last identifier rendered. The cost is that a client
// catching up after being offline polls once per missed message.
//
// Two successive polls with an advancing cursor observe messages in
// strictly increasing identifier order, never skip one, and never
// replay one at or below the cursor.
package poll
