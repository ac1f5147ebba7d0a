// Package wire defines the chat streaming wire protocol shared by the
// relay server and its clients.
//
// # Frames
//
// A frame is one line of the form:
//
//	data: {"content":"Hello"}
//
// followed by a blank line. Payloads are mutually exclusive JSON variants
// ({sessionId}, {content}, {sources}, {error, details?}) or the literal
// sentinel [DONE] that terminates the stream.
//
// Encode and Decode are pure and round-trip: Decode(payload of Encode(f))
// yields f for every structured variant. Decode returns nil for malformed
// payloads; consumers discard those lines and keep reading.
//
// # Request body
//
// Clients POST a ChatRequest carrying the new user message, the full prior
// conversation, and the session id when one exists. Frames are totally
// ordered on the wire and must be applied in arrival order.
package wire
