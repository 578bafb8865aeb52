package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
	"github.com/dshills/remotedebug/internal/debug/target"
	"github.com/dshills/remotedebug/internal/debug/wire"
	"github.com/dshills/remotedebug/internal/httpapi"
)

// disconnectTimeout bounds the requests sent while leaving a session.
const disconnectTimeout = 5 * time.Second

// sessionFlags are the event requests installed when a session starts.
type sessionFlags struct {
	breakpoints []string
	condition   string
	catch       []string
	caught      bool
	threads     bool
	methods     []string
	fields      []string
}

func (s *sessionFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVarP(&s.breakpoints, "break", "b", nil, "Breakpoint as Class:Line or Class.method:Line (repeatable)")
	f.StringVar(&s.condition, "if", "", "Lua condition applied to every --break")
	f.StringArrayVar(&s.catch, "catch", nil, "Suspend on uncaught exceptions matching this class pattern (repeatable)")
	f.BoolVar(&s.caught, "caught", false, "Make --catch also suspend on caught exceptions")
	f.BoolVar(&s.threads, "threads", false, "Report thread start and death")
	f.StringArrayVar(&s.methods, "trace", nil, "Suspend on entry to methods matching this pattern (repeatable)")
	f.StringArrayVar(&s.fields, "watch", nil, "Suspend when this field is modified (repeatable)")
}

// install registers every requested listener with the target.
func (s *sessionFlags) install(ctx context.Context, tgt *target.Target) error {
	for _, spec := range s.breakpoints {
		loc, err := parseLocation(spec)
		if err != nil {
			return err
		}
		if _, err := tgt.SetBreakpoint(ctx, loc, target.BreakpointOptions{Condition: s.condition}); err != nil {
			return fmt.Errorf("breakpoint %s: %w", spec, err)
		}
	}
	for _, pattern := range s.catch {
		if _, err := tgt.CatchExceptions(ctx, pattern, s.caught, true); err != nil {
			return err
		}
	}
	if s.threads {
		if err := tgt.WatchThreads(ctx); err != nil {
			return err
		}
	}
	for _, pattern := range s.methods {
		if _, err := tgt.TraceMethods(ctx, pattern, false); err != nil {
			return err
		}
	}
	for _, field := range s.fields {
		if _, err := tgt.WatchField(ctx, field, false, true); err != nil {
			return err
		}
	}
	return nil
}

// parseLocation parses Class:Line or Class.method:Line. The method part is
// recognised only when the class is followed by a lower-case segment.
func parseLocation(s string) (event.Location, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return event.Location{}, fmt.Errorf("location %q: want Class:Line", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line <= 0 {
		return event.Location{}, fmt.Errorf("location %q: bad line number", s)
	}

	loc := event.Location{Class: s[:i], Line: line}
	if j := strings.LastIndexByte(loc.Class, '.'); j > 0 && j < len(loc.Class)-1 {
		if name := loc.Class[j+1:]; name[0] >= 'a' && name[0] <= 'z' {
			loc.Method = name
			loc.Class = loc.Class[:j]
		}
	}
	return loc, nil
}

// jsonEvent is the line written to stdout for every model event.
type jsonEvent struct {
	Time   time.Time      `json:"time"`
	Kind   string         `json:"kind"`
	Detail string         `json:"detail,omitempty"`
	Source string         `json:"source"`
	Thread int64          `json:"thread,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// eventPrinter writes model events as JSON lines.
func eventPrinter(out io.Writer) model.Handler {
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	return func(batch []model.Event) {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range batch {
			detail := ""
			if e.Detail != model.Unspecified {
				detail = e.Detail.String()
			}
			_ = enc.Encode(jsonEvent{
				Time:   e.Time,
				Kind:   e.Kind.String(),
				Detail: detail,
				Source: e.Source,
				Thread: e.Thread,
				Data:   e.Data,
			})
		}
	}
}

// runSession drives one debug session until the debuggee goes away or ctx
// is cancelled. A launched debuggee is terminated on cancel; an attached one
// is left running.
func runSession(ctx context.Context, g *globals, transport wire.Transport, sess sessionFlags, launched bool) error {
	conn := wire.NewConn(transport,
		wire.WithLogger(g.logger),
		wire.WithGroupBuffer(g.cfg.Connection.ReceiveBuffer))

	bus := model.NewBus(g.logger)
	bus.Subscribe(eventPrinter(g.out))
	sink := model.Tee(model.NewLogSink(g.logger), bus)

	tgt := target.New(conn, sink,
		target.WithLogger(g.logger),
		target.WithDispatchOptions(dispatch.WithListenerIsolation(g.cfg.Dispatch.IsolateListeners)))
	tgt.Start(ctx)

	if err := sess.install(ctx, tgt); err != nil {
		leave(tgt, launched)
		return err
	}

	httpCtx, stopHTTP := context.WithCancel(ctx)
	defer stopHTTP()
	if g.cfg.HTTP.Enabled {
		router := httpapi.NewRouter(tgt, httpapi.Options{
			AllowedOrigins: g.cfg.HTTP.AllowedOrigins,
			Logger:         g.logger,
		})
		go func() {
			if err := httpapi.Serve(httpCtx, g.cfg.HTTP.Addr, router, g.logger); err != nil {
				g.logger.Error().Err(err).Msg("http server failed")
			}
		}()
	}

	select {
	case <-tgt.Done():
		// The debuggee ended the session; release the connection and reap
		// a launched agent.
		leave(tgt, false)
	case <-ctx.Done():
		g.logger.Info().Msg("interrupted")
		leave(tgt, launched)
	}
	tgt.Wait()

	st := tgt.Status()
	g.logger.Info().
		Str("state", st.State).
		Int("exit_code", st.ExitCode).
		Uint64("groups", st.Dispatch.Groups).
		Uint64("resumes", st.Dispatch.Resumes).
		Msg("session ended")
	return nil
}

func leave(tgt *target.Target, launched bool) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	if launched {
		_ = tgt.Terminate(ctx)
		return
	}
	_ = tgt.Disconnect(ctx)
}
