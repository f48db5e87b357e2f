package actions

type HookFunc func(a Action, r *Result)

// HookRegistry runs registered hooks in registration order.
type HookRegistry struct {
	before []HookFunc
	after  []HookFunc
}

func NewHookRegistry() *HookRegistry { return &HookRegistry{} }

func (h *HookRegistry) OnBefore(fn HookFunc) { h.before = append(h.before, fn) }
func (h *HookRegistry) OnAfter(fn HookFunc)  { h.after = append(h.after, fn) }

func (h *HookRegistry) BeforeExecute(a Action, r *Result) {
	for _, fn := range h.before {
		fn(a, r)
	}
}

func (h *HookRegistry) AfterExecute(a Action, r *Result) {
	for _, fn := range h.after {
		fn(a, r)
	}
}
