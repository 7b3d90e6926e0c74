package model

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Project is the full set of entities for one source recording.
// The engine only reads it; edits happen outside and between frame evaluations.
type Project struct {
	Version  string    `yaml:"version"`
	Source   string    `yaml:"source"`
	Duration float64   `yaml:"duration,omitempty"` // 0 means probe the source
	Captions []Caption `yaml:"captions,omitempty"`
	Effects  []Effect  `yaml:"effects,omitempty"`
	Cutaways []Cutaway `yaml:"cutaways,omitempty"`
	Branding Branding  `yaml:"branding,omitempty"`
}

// ActiveCaption returns the caption rendered at instant. When captions
// overlap the one with the earliest start wins; ties keep stored order.
func (p *Project) ActiveCaption(instant float64) (*Caption, bool) {
	var best *Caption
	for i := range p.Captions {
		c := &p.Captions[i]
		if !c.Contains(instant) {
			continue
		}
		if best == nil || c.Start < best.Start {
			best = c
		}
	}
	return best, best != nil
}

// ActiveCutaway returns the single visible cutaway at instant (earliest start).
func (p *Project) ActiveCutaway(instant float64) (*Cutaway, bool) {
	var best *Cutaway
	for i := range p.Cutaways {
		c := &p.Cutaways[i]
		if !c.Contains(instant) {
			continue
		}
		if best == nil || c.Start < best.Start {
			best = c
		}
	}
	return best, best != nil
}

// ActiveEffects returns every effect whose interval contains instant.
func (p *Project) ActiveEffects(instant float64) []Effect {
	var out []Effect
	for _, e := range p.Effects {
		if e.Contains(instant) {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy so a driver can hold a stable snapshot.
func (p *Project) Clone() *Project {
	c := *p
	c.Captions = make([]Caption, len(p.Captions))
	for i, cp := range p.Captions {
		cp.Words = append([]WordTiming(nil), cp.Words...)
		cp.Emphasis = append([]string(nil), cp.Emphasis...)
		c.Captions[i] = cp
	}
	c.Effects = make([]Effect, len(p.Effects))
	for i, e := range p.Effects {
		params := make(Params, len(e.Params))
		for k, v := range e.Params {
			params[k] = v
		}
		e.Params = params
		c.Effects[i] = e
	}
	c.Cutaways = append([]Cutaway(nil), p.Cutaways...)
	return &c
}

// Normalize assigns ids to entities loaded without one and fills defaults.
func (p *Project) Normalize() {
	if p.Version == "" {
		p.Version = "1.0"
	}
	for i := range p.Captions {
		if p.Captions[i].ID == "" {
			p.Captions[i].ID = uuid.NewString()
		}
		if p.Captions[i].Animation == "" {
			p.Captions[i].Animation = CaptionKaraoke
		}
	}
	for i := range p.Effects {
		if p.Effects[i].ID == "" {
			p.Effects[i].ID = uuid.NewString()
		}
	}
	for i := range p.Cutaways {
		if p.Cutaways[i].ID == "" {
			p.Cutaways[i].ID = uuid.NewString()
		}
		if p.Cutaways[i].Animation == "" {
			p.Cutaways[i].Animation = CutawayKenBurns
		}
		if p.Cutaways[i].Position == "" {
			p.Cutaways[i].Position = PositionFullscreen
		}
	}
}

// ReadProject loads a project from a YAML file.
func ReadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	p.Normalize()
	return &p, nil
}

// WriteProject writes a project to a YAML file.
func WriteProject(p *Project, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
