// Package websocket carries action messages between diagram clients and their
// sessions over WebSocket connections.
//
// One connection may serve several diagrams: every client id seen on it gets its
// session bound to the connection's Endpoint, and released again when the
// connection ends.
package websocket
