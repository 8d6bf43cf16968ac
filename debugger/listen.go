package debugger

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Listen pumps debugger events from the page into the manager until ctx
// is canceled. Start it before Enable so the script announcements the
// target replays on attach are not missed.
func (m *Manager) Listen(ctx context.Context, page *rod.Page) {
	go func() {
		wait := page.Context(ctx).EachEvent(
			func(e *proto.DebuggerPaused) { m.HandlePaused(e) },
			func(e *proto.DebuggerResumed) { m.HandleResumed(e) },
			func(e *proto.DebuggerScriptParsed) { m.scripts.HandleScriptParsed(e) },
		)
		wait()
		m.log.Debug("debugger: event pump stopped", "session", m.sess.id)
	}()
}
