package sim

// A HookPos names a point in the simulation where hooks are invoked, e.g.
// the completion of an access.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation of the hooks: where it happens, which
// object invokes it, and what the position reports.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable objects accept hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// A Hook observes the simulation. Hooks must not change the state of the
// object that invokes them.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts an ordinary function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookAt creates a hook that only calls f at the given position.
func HookAt(pos *HookPos, f func(ctx HookCtx)) Hook {
	return HookFunc(func(ctx HookCtx) {
		if ctx.Pos == pos {
			f(ctx)
		}
	})
}

// HookableBase implements Hookable. Embed it to make a type hookable.
type HookableBase struct {
	Hooks []Hook
}

// NewHookableBase creates a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// AcceptHook registers a hook. Hooks are invoked in registration order.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.Hooks)
}

// InvokeHook calls every registered hook with the context.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
