package session

import "screencap/internal/clock"

func (m *Manager) consumeTicks() {
	defer m.wg.Done()
	if m.clock == nil {
		return
	}
	ticks := m.clock.Ticks()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case t := <-ticks:
			m.mu.Lock()
			m.applyTickLocked(t)
			m.mu.Unlock()
		}
	}
}

// applyTickLocked accepts a tick only for the current recording. Ticks are
// cumulative, so a late tick of the current epoch is still accurate.
func (m *Manager) applyTickLocked(t clock.Tick) {
	if !m.activeLocked() || t.Epoch != m.epoch {
		return
	}
	if t.Elapsed > m.state.elapsed {
		m.state.elapsed = t.Elapsed
	}
}

// drainTicksLocked folds an already-emitted tick into elapsed so the stop
// snapshot is not one second behind the clock.
func (m *Manager) drainTicksLocked() {
	if m.clock == nil {
		return
	}
	select {
	case t := <-m.clock.Ticks():
		m.applyTickLocked(t)
	default:
	}
}
