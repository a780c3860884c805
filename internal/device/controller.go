package device

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/animation"
	"github.com/dokzlo13/softboxd/internal/color"
	"github.com/dokzlo13/softboxd/internal/scheduler"
	"github.com/dokzlo13/softboxd/internal/strip"
)

// ButtonPalette is the sequence stepped through by button presses. The final
// entry switches the output off.
var ButtonPalette = []color.RGB{
	color.Red, color.Green, color.Blue, color.Yellow,
	color.Magenta, color.Cyan, color.White, color.Black,
}

// Subscriber receives a snapshot after every committed change.
type Subscriber func(Snapshot, Source)

// Options configures a Controller.
type Options struct {
	Name    string
	Version string
	Seed    uint64
	Initial State
}

// Controller serializes every access to the device state. One mutex covers the
// state record, the animation engine, the scheduler arm/cancel, the strip push and
// the lifecycle gate, so the rendering mode can never be observed half-switched.
type Controller struct {
	mu        sync.Mutex
	state     State
	engine    *animation.Engine
	sched     *scheduler.Scheduler
	strip     *strip.Adapter
	frame     strip.Frame
	gate      bool
	animating bool
	buttonIdx int

	name    string
	version string

	subMu sync.RWMutex
	subs  []Subscriber

	// notifyMu is taken before mu is released so subscribers observe commits in
	// order.
	notifyMu sync.Mutex
}

// NewController creates a controller that renders to out. The render scheduler is
// created here; callers must run it via Scheduler().Run.
func NewController(out *strip.Adapter, opts Options) *Controller {
	c := &Controller{
		state:     opts.Initial,
		engine:    animation.NewEngine(strip.NumPixels, opts.Seed),
		strip:     out,
		buttonIdx: -1,
		name:      opts.Name,
		version:   opts.Version,
	}
	c.state.SpeedMs = NormalizeSpeed(c.state.SpeedMs)
	if !animation.Valid(int(c.state.Pattern)) {
		c.state.Pattern = animation.Static
	}
	c.sched = scheduler.New(c.tick)
	return c
}

// Scheduler returns the render scheduler.
func (c *Controller) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Subscribe registers fn for state-change notifications.
func (c *Controller) Subscribe(fn Subscriber) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

// ApplyDelta applies d as one atomic update. If anything changed the rendering mode
// is re-decided and subscribers are notified, in commit order, after the lock is
// released. Subscribers must not call back into the controller.
func (c *Controller) ApplyDelta(d Delta, src Source) Result {
	c.mu.Lock()
	colorChanged, stateChanged := c.state.merge(d)
	if colorChanged || stateChanged {
		c.renderModeLocked()
	}
	res := Result{
		ColorChanged: colorChanged,
		StateChanged: stateChanged,
		Snapshot:     c.snapshotLocked(),
	}
	if !res.Applied() {
		c.mu.Unlock()
		return res
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	log.Debug().
		Str("source", string(src)).
		Bool("power", res.Snapshot.Power).
		Uint8("brightness", res.Snapshot.Brightness).
		Str("color", res.Snapshot.Color.String()).
		Bool("auto_mode", res.Snapshot.AutoMode).
		Str("effect", res.Snapshot.Pattern.String()).
		Uint32("speed", res.Snapshot.SpeedMs).
		Msg("State committed")
	c.notify(res.Snapshot, src)
	return res
}

// renderModeLocked enters exactly one of the static or animated paths.
func (c *Controller) renderModeLocked() {
	switch {
	case !c.state.Power:
		c.sched.Cancel()
		c.animating = false
		c.frame = strip.Frame{}
		c.pushLocked()

	case c.state.AutoMode:
		c.engine.Start(c.state.Pattern)
		c.armLocked()

	default:
		c.sched.Cancel()
		c.animating = false
		for i := range c.frame {
			c.frame[i] = c.state.Color.Scale(c.state.Brightness)
		}
		c.pushLocked()
	}
}

// armLocked starts the scheduler if the lifecycle gate allows animation.
func (c *Controller) armLocked() {
	if !c.gate {
		c.sched.Cancel()
		c.animating = false
		return
	}
	c.sched.Arm(c.state.Period())
	c.animating = true
}

func (c *Controller) pushLocked() {
	if err := c.strip.Push(c.frame, c.state.Power); err != nil {
		log.Error().Err(err).Msg("Failed to push frame")
	}
}

// tick renders one animation frame. Fires armed under an older generation, or
// arriving after the mode switched away from animation, are dropped.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.sched.Generation() || !c.state.AutoMode || !c.state.Power || !c.gate {
		return
	}
	c.engine.Render(c.frame[:], c.state.Color, c.state.Brightness)
	c.pushLocked()
}

// SetGate opens or closes the lifecycle gate. Closing stops the animation and keeps
// the last frame; opening resumes it without resetting the pattern.
func (c *Controller) SetGate(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gate == open {
		return
	}
	c.gate = open
	log.Debug().Bool("open", open).Msg("Render gate changed")

	if !open {
		c.sched.Cancel()
		c.animating = false
		return
	}
	if c.state.AutoMode && c.state.Power {
		c.armLocked()
	}
}

// PressButton advances the button palette and applies it as a static color.
func (c *Controller) PressButton() Result {
	c.mu.Lock()
	c.buttonIdx = (c.buttonIdx + 1) % len(ButtonPalette)
	next := ButtonPalette[c.buttonIdx]
	c.mu.Unlock()

	off := false
	d := Delta{AutoMode: &off}
	if next.IsBlack() {
		d.Power = &off
	} else {
		on := true
		d.Power = &on
		d.R, d.G, d.B = &next.R, &next.G, &next.B
	}
	return c.ApplyDelta(d, SourceButton)
}

// SetMesh updates the mesh identity fields.
func (c *Controller) SetMesh(id MeshIdentity) {
	c.mu.Lock()
	c.state.Mesh = id
	c.mu.Unlock()
}

// Snapshot returns a consistent copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	last := c.strip.Last()
	pixels := make([]color.RGB, len(last))
	copy(pixels, last[:])
	return Snapshot{
		State:     c.state,
		Pixels:    pixels,
		Frame:     c.engine.Frame(),
		Animating: c.animating,
		Gate:      c.gate,
	}
}

// WithSnapshot calls fn with the current snapshot. fn runs in the notification
// order: every commit before the snapshot has been delivered to subscribers and no
// later one is delivered until fn returns.
func (c *Controller) WithSnapshot(fn func(Snapshot)) {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	fn(snap)
}

// Info returns the device info record.
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Device:      c.name,
		Version:     c.version,
		MeshAddress: c.state.Mesh.Address,
		Provisioned: c.state.Mesh.Provisioned,
		Pixels:      strip.NumPixels,
		Effects:     int(animation.Count),
	}
}

// Restore pushes the current state to the strip without notifying, used at startup.
func (c *Controller) Restore() {
	c.mu.Lock()
	c.renderModeLocked()
	c.mu.Unlock()
}

func (c *Controller) notify(s Snapshot, src Source) {
	c.subMu.RLock()
	subs := make([]Subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(s, src)
	}
}
