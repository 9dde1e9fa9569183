package scheduler

import "context"

// Flag is the process-wide capture switch. It starts in the capturing state
// and is stopped at most once; loops read it between cycles and wake from
// their inter-cycle sleep when it stops.
type Flag struct {
	ctx  context.Context
	stop context.CancelFunc
}

// NewFlag returns a Flag in the capturing state.
func NewFlag() *Flag {
	ctx, stop := context.WithCancel(context.Background())
	return &Flag{ctx: ctx, stop: stop}
}

// Stop ends capturing. Calling it more than once is harmless.
func (f *Flag) Stop() {
	f.stop()
}

// Capturing reports whether loops may start another cycle.
func (f *Flag) Capturing() bool {
	return f.ctx.Err() == nil
}

// Done is closed once Stop has been called.
func (f *Flag) Done() <-chan struct{} {
	return f.ctx.Done()
}

// bind returns a context that is cancelled when either parent is done or
// the flag stops. The returned release function must be called.
func (f *Flag) bind(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	unregister := context.AfterFunc(f.ctx, cancel)
	return ctx, func() {
		unregister()
		cancel()
	}
}
