// Package preview drives live playback of a project and serves its frames.
package preview

import (
	"sync"
	"time"
)

// Player is the playback element the preview drives.
type Player interface {
	Position() float64
	Duration() float64
	Seek(instant float64)
	Play()
	Pause()
}

// SimPlayer is a Player that advances on the wall clock. It stands in for
// a media element when no decoder is attached and in tests.
type SimPlayer struct {
	Now func() time.Time

	mu       sync.Mutex
	duration float64
	base     float64
	since    time.Time
	playing  bool
	seeks    int
}

// NewSimPlayer returns a paused player at 0.
func NewSimPlayer(duration float64) *SimPlayer {
	return &SimPlayer{Now: time.Now, duration: duration}
}

func (p *SimPlayer) Duration() float64 { return p.duration }

func (p *SimPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *SimPlayer) position() float64 {
	pos := p.base
	if p.playing {
		pos += p.Now().Sub(p.since).Seconds()
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (p *SimPlayer) Seek(instant float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if instant < 0 {
		instant = 0
	}
	if p.duration > 0 && instant > p.duration {
		instant = p.duration
	}
	p.base = instant
	p.since = p.Now()
	p.seeks++
}

func (p *SimPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		p.since = p.Now()
		p.playing = true
	}
}

func (p *SimPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.position()
	p.playing = false
}

// Seeks counts the seeks issued to the player.
func (p *SimPlayer) Seeks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seeks
}
