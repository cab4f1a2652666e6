package visitors

import "hash/fnv"

var aliasAdjectives = []string{
	"Curious", "Happy", "Clever", "Wise", "Playful", "Brave", "Swift", "Gentle", "Bright", "Calm",
	"Bold", "Lively", "Nimble", "Cheerful", "Creative", "Elegant", "Friendly", "Kind", "Quiet", "Sparkling",
	"Dapper", "Jolly", "Merry", "Radiant", "Serene", "Spirited", "Warm", "Zippy", "Daring", "Graceful",
}

var aliasAnimals = []string{
	"Panda", "Fox", "Owl", "Otter", "Lion", "Eagle", "Deer", "Raven", "Beaver", "Koala",
	"Sloth", "Hamster", "Bear", "Penguin", "Parrot", "Giraffe", "Raccoon", "Meerkat", "Llama", "Hedgehog",
	"Dolphin", "Whale", "Seahorse", "Turtle", "Octopus", "Heron", "Finch", "Falcon", "Badger", "Lynx",
}

// Alias returns a stable, human friendly label for a session id so the dashboard
// can list sessions without exposing raw identifiers.
func Alias(sessionID string) string {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	index := int(h.Sum32())

	adj := aliasAdjectives[index%len(aliasAdjectives)]
	animal := aliasAnimals[(index/len(aliasAdjectives))%len(aliasAnimals)]
	return adj + " " + animal
}
