// Package httpapi is the JSON HTTP surface of the chat server. It maps
// service errors to status codes, converts stored rows to client
// payloads (sender usernames, short wall-clock times), and leaves
// authentication to the middleware in internal/auth.
//
// Membership is informational: posting and polling only require a valid
// session, not room membership. Polling returns JSON null both when the
// caller is caught up and when the room does not exist; clients just
// keep polling.
package httpapi
