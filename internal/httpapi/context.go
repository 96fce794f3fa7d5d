package httpapi

import (
	"context"
)

// joinContexts derives from req a context that is also canceled when base is
// done, so server shutdown stops generations without losing request values
// such as the request id. The cancel func must be called when the handler ends.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(context.Cause(base)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
