package preview

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/talkreel/internal/compositor"
)

// canvasOwner is the preview's name on the shared canvas.
const canvasOwner = "preview"

// ErrUnknownDriver is returned when activating a driver that was never added.
var ErrUnknownDriver = errors.New("unknown preview driver")

// DriverOptions tune a Driver.
type DriverOptions struct {
	TickRate           int     // ticks per second
	Epsilon            float64 // seconds of movement worth publishing
	ReconcileThreshold time.Duration
	Debounce           time.Duration
}

func (o DriverOptions) withDefaults() DriverOptions {
	if o.TickRate <= 0 {
		o.TickRate = 60
	}
	if o.Epsilon <= 0 {
		o.Epsilon = 0.01
	}
	if o.ReconcileThreshold <= 0 {
		o.ReconcileThreshold = 50 * time.Millisecond
	}
	if o.Debounce <= 0 {
		o.Debounce = 150 * time.Millisecond
	}
	return o
}

// Driver keeps the shared playback position in step with a Player.
//
// While playing, each Tick samples the player and publishes the position
// when it moved by more than Epsilon. While paused, an externally set
// position is pushed to the player once the Debounce window has passed
// without further seeks and the drift exceeds ReconcileThreshold.
type Driver struct {
	ID string

	player   Player
	canvas   *compositor.Canvas
	opts     DriverOptions
	interval time.Duration

	playing atomic.Bool

	mu          sync.Mutex
	position    float64
	seekPending bool
	seekAt      time.Time
	publish     func(instant float64)
}

// NewDriver returns a paused driver. canvas may be nil.
func NewDriver(player Player, canvas *compositor.Canvas, opts DriverOptions) *Driver {
	opts = opts.withDefaults()
	return &Driver{
		ID:       uuid.NewString(),
		player:   player,
		canvas:   canvas,
		opts:     opts,
		interval: time.Second / time.Duration(opts.TickRate),
	}
}

// OnPosition registers the position subscriber.
func (d *Driver) OnPosition(fn func(instant float64)) {
	d.mu.Lock()
	d.publish = fn
	d.mu.Unlock()
}

// Play starts playback, first sending the player any seek still waiting
// out its debounce.
func (d *Driver) Play() {
	d.mu.Lock()
	pending, target := d.seekPending, d.position
	d.seekPending = false
	d.mu.Unlock()
	if pending {
		d.player.Seek(target)
	}
	d.playing.Store(true)
	d.player.Play()
}

func (d *Driver) Pause() {
	d.playing.Store(false)
	d.player.Pause()
}

func (d *Driver) Playing() bool { return d.playing.Load() }

// Position is the shared playback position.
func (d *Driver) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// Duration is the player's media duration.
func (d *Driver) Duration() float64 { return d.player.Duration() }

// SetPosition moves the shared position from outside, e.g. a timeline drag.
// While playing the player is sought at once; while paused the seek is
// reconciled by Tick after the debounce window.
func (d *Driver) SetPosition(instant float64, now time.Time) {
	if instant < 0 {
		instant = 0
	}
	d.mu.Lock()
	d.position = instant
	d.seekPending = true
	d.seekAt = now
	publish := d.publish
	d.mu.Unlock()

	if d.playing.Load() {
		d.player.Seek(instant)
		d.mu.Lock()
		d.seekPending = false
		d.mu.Unlock()
	}
	if publish != nil {
		publish(instant)
	}
}

// Tick advances the driver to now and returns when it wants the next tick.
func (d *Driver) Tick(now time.Time) time.Time {
	next := now.Add(d.interval)
	if d.canvas != nil && d.canvas.Leased(canvasOwner) {
		return next
	}

	if d.playing.Load() {
		pos := d.player.Position()
		d.mu.Lock()
		changed := math.Abs(pos-d.position) > d.opts.Epsilon
		if changed {
			d.position = pos
		}
		d.seekPending = false
		publish := d.publish
		d.mu.Unlock()
		if changed && publish != nil {
			publish(pos)
		}
		return next
	}

	d.mu.Lock()
	if !d.seekPending || now.Sub(d.seekAt) < d.opts.Debounce {
		d.mu.Unlock()
		return next
	}
	d.seekPending = false
	target := d.position
	d.mu.Unlock()

	drift := math.Abs(d.player.Position() - target)
	if drift > d.opts.ReconcileThreshold.Seconds() {
		d.player.Seek(target)
	}
	return next
}

// Registry holds every preview driver and the single active one. Only the
// active driver is ticked.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]*Driver
	active  *Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]*Driver)}
}

// Add registers d. The first driver added becomes active.
func (r *Registry) Add(d *Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.ID] = d
	if r.active == nil {
		r.active = d
	}
}

// Activate makes the driver with id the active one.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	if !ok {
		return ErrUnknownDriver
	}
	r.active = d
	return nil
}

// Active returns the active driver or nil.
func (r *Registry) Active() *Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Tick ticks the active driver only.
func (r *Registry) Tick(now time.Time) time.Time {
	if d := r.Active(); d != nil {
		return d.Tick(now)
	}
	return now.Add(time.Second / 60)
}

// Run ticks reg until ctx is done.
func Run(ctx context.Context, reg *Registry) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-timer.C:
			next := reg.Tick(now)
			timer.Reset(time.Until(next))
		}
	}
}
