package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DoyleJ11/monster-duel-backend/internal/engine"
)

type moveEntry struct {
	Name     string  `json:"name"`
	Power    float64 `json:"power"`
	Category string  `json:"category"`
}

type speciesEntry struct {
	Name    string      `json:"name"`
	HP      int         `json:"hp"`
	Speed   int         `json:"speed"`
	Attack  int         `json:"attack"`
	Defense int         `json:"defense"`
	Moves   []moveEntry `json:"moves"`
}

type rawFile struct {
	SpeciesList []speciesEntry `json:"species_list"`
}

// LoadFile reads a roster from a JSON file with a top-level `species_list` array.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var rf rawFile
	if err := json.Unmarshal(b, &rf); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	roster := make([]Species, 0, len(rf.SpeciesList))
	for _, e := range rf.SpeciesList {
		s := Species{Name: e.Name, HP: e.HP, Speed: e.Speed, Attack: e.Attack, Defense: e.Defense}
		for _, m := range e.Moves {
			s.Moves = append(s.Moves, engine.Move{Name: m.Name, Power: m.Power, Category: category(m.Category, m.Power)})
		}
		roster = append(roster, s)
	}

	c, err := New(roster)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func category(raw string, power float64) engine.Category {
	switch engine.Category(raw) {
	case engine.CategoryPhysical, engine.CategorySpecial, engine.CategoryStatus:
		return engine.Category(raw)
	}
	if power == 0 {
		return engine.CategoryStatus
	}
	return engine.CategoryPhysical
}
