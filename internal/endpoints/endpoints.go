// Package endpoints enumerates the remote API groups the relay is
// willing to forward. Anything else never leaves this process.
package endpoints

var names = map[string]struct{}{
	// Berries
	"berry":          {},
	"berry-firmness": {},
	"berry-flavor":   {},

	// Contests
	"contest-type":         {},
	"contest-effect":       {},
	"super-contest-effect": {},

	// Encounters
	"encounter-method":          {},
	"encounter-condition":       {},
	"encounter-condition-value": {},

	// Evolution
	"evolution-chain":   {},
	"evolution-trigger": {},

	// Games
	"generation":    {},
	"pokedex":       {},
	"version":       {},
	"version-group": {},

	// Items
	"item":              {},
	"item-attribute":    {},
	"item-category":     {},
	"item-fling-effect": {},
	"item-pocket":       {},

	// Locations
	"location":      {},
	"location-area": {},
	"pal-park-area": {},
	"region":        {},

	// Machines
	"machine": {},

	// Moves
	"move":              {},
	"move-ailment":      {},
	"move-category":     {},
	"move-damage-class": {},
	"move-learn-method": {},
	"move-target":       {},

	// Pokemon
	"ability":         {},
	"characteristic":  {},
	"egg-group":       {},
	"gender":          {},
	"growth-rate":     {},
	"nature":          {},
	"pokeathlon-stat": {},
	"pokemon":         {},
	"pokemon-color":   {},
	"pokemon-form":    {},
	"pokemon-habitat": {},
	"pokemon-shape":   {},
	"pokemon-species": {},
	"stat":            {},
	"type":            {},

	// Utility
	"language": {},
}

// Valid reports whether name is a known remote endpoint group.
func Valid(name string) bool {
	_, ok := names[name]
	return ok
}
