// Package http exposes the diagram server over HTTP with a chi router:
// the WebSocket entry point, session administration, health, metrics and a
// server-sent event stream of diagram changes.
package http
