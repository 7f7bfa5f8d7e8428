package engine

import (
	"context"
	"sync"
	"time"
)

// Mock is a test double for Engine. It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	nextID     uint64
	units      map[uint64]*mockUnit
	loadErrs   map[string]error
	gates      map[string]chan struct{}
	playErr    error
	pauseErr   error
	stopErr    error
	onFinished func(Unit)

	loadCalls   []string
	unloadCalls []uint64
	playCalls   []uint64
	pauseCalls  []uint64
	stopCalls   []uint64
}

type mockUnit struct {
	id       uint64
	locator  string
	state    unitState
	position time.Duration
	duration time.Duration
}

func (u *mockUnit) ID() uint64      { return u.id }
func (u *mockUnit) Locator() string { return u.locator }

// NewMock creates a new mock engine for testing.
func NewMock() *Mock {
	return &Mock{
		units:    make(map[uint64]*mockUnit),
		loadErrs: make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

func (m *Mock) Load(ctx context.Context, locator string) (Unit, error) {
	m.mu.Lock()
	m.loadCalls = append(m.loadCalls, locator)
	gate := m.gates[locator]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &LoadError{Locator: locator, Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadErrs[locator]; err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}
	m.nextID++
	u := &mockUnit{id: m.nextID, locator: locator, state: unitLoaded, duration: 3 * time.Minute}
	m.units[u.id] = u
	return u, nil
}

func (m *Mock) Unload(_ context.Context, u Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unloadCalls = append(m.unloadCalls, u.ID())
	if mu, ok := m.units[u.ID()]; ok {
		mu.state = unitUnloaded
	}
	return nil
}

func (m *Mock) Play(_ context.Context, u Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls = append(m.playCalls, u.ID())
	mu, err := m.loadedLocked(OpPlay, u, m.playErr)
	if err != nil {
		return err
	}
	mu.state = unitPlaying
	return nil
}

func (m *Mock) Pause(_ context.Context, u Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseCalls = append(m.pauseCalls, u.ID())
	mu, err := m.loadedLocked(OpPause, u, m.pauseErr)
	if err != nil {
		return err
	}
	if mu.state == unitPlaying {
		mu.state = unitPaused
	}
	return nil
}

func (m *Mock) Stop(_ context.Context, u Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls = append(m.stopCalls, u.ID())
	mu, err := m.loadedLocked(OpStop, u, m.stopErr)
	if err != nil {
		return err
	}
	mu.state = unitPaused
	mu.position = 0
	return nil
}

func (m *Mock) Progress(u Unit) (time.Duration, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.units[u.ID()]
	if !ok || mu.state == unitUnloaded {
		return 0, 0
	}
	return mu.position, mu.duration
}

func (m *Mock) OnFinished(fn func(Unit)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinished = fn
}

func (m *Mock) loadedLocked(op Op, u Unit, injected error) (*mockUnit, error) {
	mu, ok := m.units[u.ID()]
	if !ok || mu.state == unitUnloaded {
		return nil, &TransportError{Op: op, UnitID: u.ID(), Err: ErrNotLoaded}
	}
	if injected != nil {
		return nil, &TransportError{Op: op, UnitID: u.ID(), Err: injected}
	}
	return mu, nil
}

// Test helpers

// Gate makes Load(locator) block until the returned release func is called.
func (m *Mock) Gate(locator string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[locator] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gates[locator] == ch {
				delete(m.gates, locator)
			}
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Mock) SetLoadError(locator string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.loadErrs, locator)
		return
	}
	m.loadErrs[locator] = err
}

func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

func (m *Mock) SetPauseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseErr = err
}

func (m *Mock) SetStopError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
}

func (m *Mock) SetPosition(u Unit, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mu, ok := m.units[u.ID()]; ok {
		mu.position = d
	}
}

func (m *Mock) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

func (m *Mock) UnloadCalls() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.unloadCalls...)
}

func (m *Mock) PlayCalls() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.playCalls...)
}

func (m *Mock) PauseCalls() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.pauseCalls...)
}

func (m *Mock) StopCalls() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.stopCalls...)
}

// LiveUnits returns the IDs of units that are loaded and not yet unloaded.
func (m *Mock) LiveUnits() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for id, u := range m.units {
		if u.state != unitUnloaded {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsPlaying reports whether the unit with id is playing.
func (m *Mock) IsPlaying(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	return ok && u.state == unitPlaying
}

// SimulateFinished simulates u playing to its end.
func (m *Mock) SimulateFinished(u Unit) {
	m.mu.Lock()
	if mu, ok := m.units[u.ID()]; ok && mu.state != unitUnloaded {
		mu.state = unitLoaded
		mu.position = 0
	}
	fn := m.onFinished
	m.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// Verify Mock implements Engine at compile time.
var _ Engine = (*Mock)(nil)
