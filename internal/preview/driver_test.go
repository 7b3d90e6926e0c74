package preview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivlev/talkreel/internal/compositor"
)

type testClock struct{ now time.Time }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func simPlayer(c *testClock, d float64) *SimPlayer {
	p := NewSimPlayer(d)
	p.Now = c.Now
	return p
}

func TestSimPlayer(t *testing.T) {
	clock := newTestClock()
	p := simPlayer(clock, 5)

	p.Play()
	clock.advance(1500 * time.Millisecond)
	if got := p.Position(); got != 1.5 {
		t.Errorf("expected 1.5 after playing 1.5s, got %v", got)
	}
	p.Pause()
	clock.advance(time.Second)
	if got := p.Position(); got != 1.5 {
		t.Errorf("paused player must not advance, got %v", got)
	}
	p.Seek(9)
	if got := p.Position(); got != 5 {
		t.Errorf("seek must clamp to the duration, got %v", got)
	}
}

func TestTickPublishesBeyondEpsilon(t *testing.T) {
	clock := newTestClock()
	player := simPlayer(clock, 10)
	d := NewDriver(player, nil, DriverOptions{Epsilon: 0.01})

	var published []float64
	d.OnPosition(func(instant float64) { published = append(published, instant) })

	d.Play()
	clock.advance(5 * time.Millisecond)
	d.Tick(clock.now)
	if len(published) != 0 {
		t.Fatalf("5ms of movement is below epsilon, published %v", published)
	}

	clock.advance(20 * time.Millisecond)
	d.Tick(clock.now)
	if len(published) != 1 || published[0] != 0.025 {
		t.Fatalf("expected one publish at 0.025, got %v", published)
	}
	if d.Position() != 0.025 {
		t.Errorf("shared position not updated: %v", d.Position())
	}
}

func TestTickReturnsNextInstant(t *testing.T) {
	clock := newTestClock()
	d := NewDriver(simPlayer(clock, 10), nil, DriverOptions{TickRate: 50})
	if next := d.Tick(clock.now); next.Sub(clock.now) != 20*time.Millisecond {
		t.Errorf("expected a 20ms tick interval, got %v", next.Sub(clock.now))
	}
}

func TestPausedSeekReconciliation(t *testing.T) {
	clock := newTestClock()
	player := simPlayer(clock, 10)
	d := NewDriver(player, nil, DriverOptions{
		ReconcileThreshold: 50 * time.Millisecond,
		Debounce:           150 * time.Millisecond,
	})

	d.SetPosition(2.0, clock.now)
	clock.advance(100 * time.Millisecond)
	d.Tick(clock.now)
	if player.Seeks() != 0 {
		t.Fatal("seek issued inside the debounce window")
	}

	// a second drag restarts the window
	d.SetPosition(2.5, clock.now)
	clock.advance(100 * time.Millisecond)
	d.Tick(clock.now)
	if player.Seeks() != 0 {
		t.Fatal("seek issued before the restarted window elapsed")
	}

	clock.advance(60 * time.Millisecond)
	d.Tick(clock.now)
	if player.Seeks() != 1 || player.Position() != 2.5 {
		t.Fatalf("expected one seek to 2.5, got %d seeks at %v", player.Seeks(), player.Position())
	}

	// drift under the threshold is left alone
	d.SetPosition(2.52, clock.now)
	clock.advance(200 * time.Millisecond)
	d.Tick(clock.now)
	if player.Seeks() != 1 {
		t.Errorf("20ms drift must not trigger a seek, got %d seeks", player.Seeks())
	}
}

func TestPlayingSetPositionSeeksNow(t *testing.T) {
	clock := newTestClock()
	player := simPlayer(clock, 10)
	d := NewDriver(player, nil, DriverOptions{})
	d.Play()

	d.SetPosition(4, clock.now)
	if player.Seeks() != 1 || player.Position() != 4 {
		t.Errorf("expected an immediate seek to 4, got %d seeks at %v", player.Seeks(), player.Position())
	}
}

func TestPlayFlushesPendingSeek(t *testing.T) {
	clock := newTestClock()
	player := simPlayer(clock, 10)
	d := NewDriver(player, nil, DriverOptions{Debounce: 150 * time.Millisecond})

	d.SetPosition(5, clock.now)
	clock.advance(20 * time.Millisecond)
	d.Play()
	if got := player.Position(); got != 5 {
		t.Fatalf("play inside the debounce window must seek first, player at %v", got)
	}

	clock.advance(20 * time.Millisecond)
	d.Tick(clock.now)
	if got := d.Position(); got < 5 {
		t.Errorf("scrub lost: shared position %v", got)
	}
	if player.Seeks() != 1 {
		t.Errorf("expected exactly one seek, got %d", player.Seeks())
	}
}

func TestTickSkipsWhileExportOwnsCanvas(t *testing.T) {
	clock := newTestClock()
	canvas := &compositor.Canvas{}
	d := NewDriver(simPlayer(clock, 10), canvas, DriverOptions{})

	published := 0
	d.OnPosition(func(float64) { published++ })
	d.Play()

	if err := canvas.Acquire("export"); err != nil {
		t.Fatal(err)
	}
	clock.advance(time.Second)
	d.Tick(clock.now)
	if published != 0 {
		t.Fatal("preview published while export owned the canvas")
	}

	canvas.Release("export")
	d.Tick(clock.now)
	if published != 1 {
		t.Errorf("expected a publish once the lease ended, got %d", published)
	}
}

func TestRegistryTicksActiveOnly(t *testing.T) {
	clock := newTestClock()
	a := NewDriver(simPlayer(clock, 10), nil, DriverOptions{})
	b := NewDriver(simPlayer(clock, 10), nil, DriverOptions{})
	reg := NewRegistry()
	reg.Add(a)
	reg.Add(b)

	if reg.Active() != a {
		t.Fatal("first driver added must be active")
	}
	a.Play()
	b.Play()
	clock.advance(time.Second)
	reg.Tick(clock.now)
	if a.Position() != 1 || b.Position() != 0 {
		t.Errorf("only the active driver may write position: a=%v b=%v", a.Position(), b.Position())
	}

	if err := reg.Activate("nope"); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
	if err := reg.Activate(b.ID); err != nil {
		t.Fatal(err)
	}
	reg.Tick(clock.now)
	if b.Position() != 1 {
		t.Errorf("activated driver did not tick, position %v", b.Position())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := Run(ctx, NewRegistry()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
