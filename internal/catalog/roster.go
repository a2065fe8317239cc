package catalog

import "github.com/DoyleJ11/monster-duel-backend/internal/engine"

var defaultRoster = []Species{
	{
		Name: "Pikachu", HP: 100, Speed: 90, Attack: 55, Defense: 40,
		Moves: []engine.Move{
			{Name: "Thunderbolt", Power: 90, Category: engine.CategorySpecial},
			{Name: "Quick Attack", Power: 40, Category: engine.CategoryPhysical},
			{Name: "Tackle", Power: 40, Category: engine.CategoryPhysical},
			{Name: "Growl", Power: 0, Category: engine.CategoryStatus},
		},
	},
	{
		Name: "Bulbasaur", HP: 120, Speed: 60, Attack: 49, Defense: 49,
		Moves: []engine.Move{
			{Name: "Vine Whip", Power: 45, Category: engine.CategorySpecial},
			{Name: "Tackle", Power: 40, Category: engine.CategoryPhysical},
			{Name: "Growl", Power: 0, Category: engine.CategoryStatus},
			{Name: "Leech Seed", Power: 0, Category: engine.CategoryStatus},
		},
	},
}
