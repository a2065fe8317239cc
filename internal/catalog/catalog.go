// Package catalog holds the species table combatants are built from.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DoyleJ11/monster-duel-backend/internal/engine"
)

var ErrUnknownSpecies = errors.New("unknown species")
var ErrEmptyCatalog = errors.New("catalog has no species")

type Species struct {
	Name    string
	HP      int
	Speed   int
	Attack  int
	Defense int
	Moves   []engine.Move
}

// Catalog is read-only once built.
type Catalog struct {
	roster []Species
	byName map[string]int
}

func Default() *Catalog {
	c, err := New(defaultRoster)
	if err != nil {
		panic(err)
	}
	return c
}

// New validates the roster and builds a catalog from it.
func New(roster []Species) (*Catalog, error) {
	if len(roster) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		roster: make([]Species, 0, len(roster)),
		byName: make(map[string]int, len(roster)),
	}
	for _, s := range roster {
		if err := validate(s); err != nil {
			return nil, err
		}
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate species %q", s.Name)
		}
		s.Moves = append([]engine.Move(nil), s.Moves...)
		c.byName[key] = len(c.roster)
		c.roster = append(c.roster, s)
	}
	return c, nil
}

func validate(s Species) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("species missing name")
	}
	if s.HP <= 0 {
		return fmt.Errorf("species %q: hp must be positive", s.Name)
	}
	if s.Defense <= 0 {
		return fmt.Errorf("species %q: defense must be positive", s.Name)
	}
	if len(s.Moves) == 0 {
		return fmt.Errorf("species %q: no moves", s.Name)
	}
	for _, m := range s.Moves {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("species %q: move missing name", s.Name)
		}
		if m.Power < 0 {
			return fmt.Errorf("species %q: move %q has negative power", s.Name, m.Name)
		}
	}
	return nil
}

func (c *Catalog) Lookup(name string) (Species, error) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Species{}, fmt.Errorf("%w: %s", ErrUnknownSpecies, name)
	}
	return c.roster[i], nil
}

// ForSlot returns the species assigned to a battle slot.
func (c *Catalog) ForSlot(slot int) Species {
	return c.roster[slot%len(c.roster)]
}

func (c *Catalog) Len() int { return len(c.roster) }

// NewCombatant builds a full-health combatant for a connection.
func NewCombatant(s Species, connID, displayName string) engine.Combatant {
	return engine.Combatant{
		ConnID:    connID,
		Name:      displayName,
		Species:   s.Name,
		MaxHP:     s.HP,
		CurrentHP: s.HP,
		Speed:     s.Speed,
		Attack:    s.Attack,
		Defense:   s.Defense,
		Moves:     append([]engine.Move(nil), s.Moves...),
	}
}
