package simulation

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable defines an object that accept Hooks
type Hookable interface {
	// AcceptHook registers a hook
	AcceptHook(hook Hook)
}

// HookPosTraceStart triggers when an engine starts a trace. The item is the
// trace name.
var HookPosTraceStart = &HookPos{Name: "TraceStart"}

// HookPosAccess triggers after every access. The item is an AccessInfo.
var HookPosAccess = &HookPos{Name: "Access"}

// HookPosMalformedRecord triggers when a record is skipped. The item is the
// *trace.MalformedRecordError.
var HookPosMalformedRecord = &HookPos{Name: "MalformedRecord"}

// HookPosTraceEnd triggers when a trace finishes. The item is the Stats.
var HookPosTraceEnd = &HookPos{Name: "TraceEnd"}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	Hooks []Hook
}

// NewHookableBase creates a HookableBase object
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.Hooks = make([]Hook, 0)
	return h
}

// AcceptHook register a hook
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// InvokeHook triggers the register Hooks
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
