// Package relay implements the HTTP surface of the chat relay.
//
// The server exposes two routes:
//
//   - POST /api/chat accepts a chat request and answers with a
//     server-sent event stream. Each event carries one wire frame and
//     the stream always terminates with the [DONE] sentinel, so a
//     client can treat the sentinel as the only end-of-turn signal.
//   - GET /health reports liveness.
//
// When a JWT secret is configured, /api/chat requires a bearer token.
// The health route is always unauthenticated.
package relay
