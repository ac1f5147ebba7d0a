// Package conversation implements the client side of the chat streaming
// protocol: a state machine that owns one conversation and drives the
// send/stop/clear contract.
//
// # State machine
//
//	Idle --Send--> Streaming --[DONE]/error/completion--> Idle
//	Streaming --Stop--> Idle (content frozen at whatever accumulated)
//
// Only one send is live at a time. A new Send cancels the previous
// token before opening its own request, so exactly one network operation
// exists per controller.
//
// # Pipeline
//
// Send POSTs the chat request, then loops: read a chunk from the response
// body, feed it through framer.LineBuffer, decode each complete line with
// wire.Decode, and apply the frame to the in-progress assistant message
// (interpret.go). Frames are applied strictly in arrival order.
//
// # Failure taxonomy
//
//   - Cancellation: suppressed entirely. No log, no message.
//   - Structural failure (rejected request, non-200, transport fault):
//     logged, one fixed fallback assistant message appended.
//   - Error frame from the producer: rendered into the in-progress
//     message as "Error: ..." and treated as terminal.
//   - Malformed line: discarded, stream continues.
//
// All paths leave the controller idle and the message list append-only.
package conversation
