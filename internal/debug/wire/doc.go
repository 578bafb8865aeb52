// Package wire implements the remote connection to a debuggee: a framed JSON
// protocol carried over a subprocess's stdio, a TCP socket, or any
// io.ReadWriteCloser.
//
// # Framing
//
// Every message is a header block followed by a JSON body:
//
//	Content-Length: 119\r\n
//	\r\n
//	{"seq":4,"type":"eventGroup","groupId":2,"suspendPolicy":"all","events":[...]}
//
// # Messages
//
//   - request:    client → debuggee, answered by exactly one response
//   - response:   debuggee → client, correlated by request_seq
//   - eventGroup: debuggee → client, an atomically delivered batch of events
//
// # Connection
//
// Conn reads frames on its own goroutine. Responses complete pending
// requests; event groups are queued and handed out by Receive in arrival
// order. When the transport fails, groups already queued are still handed
// out before Receive reports event.ErrDisconnected.
package wire
