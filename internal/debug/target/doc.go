// Package target models one debuggee as seen from the front-end.
//
// A Target owns its connection and its dispatcher. It receives the
// lifecycle callbacks (start, death, disconnect), keeps a thread table, and
// offers the registration API for breakpoints, watchpoints, method traces,
// exception catches, steps, and class-prepare notifications. Each
// registration creates a request on the remote side and attaches the
// matching listener to the dispatcher.
//
// Typical use:
//
//	conn := wire.NewConn(transport)
//	t := target.New(conn, sink, target.WithLogger(logger))
//	t.Start(ctx)
//	bp, err := t.SetBreakpoint(ctx, event.Location{Class: "Main", Line: 12}, target.BreakpointOptions{})
//	...
//	t.Wait()
package target
