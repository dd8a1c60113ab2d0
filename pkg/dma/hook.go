package dma

// Hook observes entry to and exit from interrupt handlers, e.g. to pulse a
// GPIO for a logic analyser. Hooks run in interrupt context.
type Hook interface {
	Enter(Event)
	Exit(Event)
}

// HookFuncs adapts a pair of funcs to Hook. Nil funcs are skipped.
type HookFuncs struct {
	OnEnter func(Event)
	OnExit  func(Event)
}

// Enter implements Hook.
func (h HookFuncs) Enter(ev Event) {
	if h.OnEnter != nil {
		h.OnEnter(ev)
	}
}

// Exit implements Hook.
func (h HookFuncs) Exit(ev Event) {
	if h.OnExit != nil {
		h.OnExit(ev)
	}
}

type nopHook struct{}

func (nopHook) Enter(Event) {}
func (nopHook) Exit(Event)  {}
