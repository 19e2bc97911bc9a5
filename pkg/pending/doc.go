/*
Package pending correlates asynchronous requests with their responses.

A Table maps request identifiers to outstanding Handles. The session registers a
handle before dispatching a request action and resolves it when a response with the
same identifier arrives on the inbound path. Every handle is settled at most once:
by a response, by a rejection, by Cancel, or by RejectAll at session teardown.
*/
package pending
