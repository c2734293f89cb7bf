// Package nickname builds the fixed pool of pseudonyms handed out to
// participants of anonymous rooms.
package nickname

import "sync"

var qualifiers = []string{
	"Red", "Yellow", "Green", "Blue", "Purple", "White", "Black", "Pink", "Orange", "Brown",
	"Cute", "Brave", "Quiet", "Lively", "Mysterious", "Cheerful", "Wise", "Kind",
	"Fast", "Slow", "Big", "Small", "Bright", "Dark", "Warm", "Cold",
	"Happy", "Sad", "Angry", "Surprised", "Sleepy", "Hungry", "Full", "Thirsty",
}

var subjects = []string{
	"Apple", "Banana", "Grape", "Blueberry", "Eggplant", "Radish", "Carrot", "Olive", "Peach", "Chestnut",
	"Cat", "Puppy", "Rabbit", "Squirrel", "Fox", "Bear", "Lion", "Tiger", "Panda", "Koala",
	"Penguin", "Eagle", "Owl", "Crow", "Sparrow", "Parrot", "Pigeon", "Magpie",
	"Turtle", "Fish", "Dolphin", "Whale", "Shark", "Octopus", "Jellyfish", "Shrimp",
	"Butterfly", "Bee", "Ladybug", "Ant", "Dragonfly", "Cicada",
	"Rose", "Sunflower", "Tulip", "Dandelion", "Cosmos", "Chrysanthemum",
}

// Pool is an ordered list of distinct nicknames. The order is the search
// order used when assigning a nickname, so it must not change between
// calls.
type Pool struct {
	names []string
}

// NewPool returns the cross product of qualifiers and subjects formatted
// as "qualifier subject", qualifier-major. Empty words and repeated
// combinations are skipped.
func NewPool(qualifiers, subjects []string) *Pool {
	names := make([]string, 0, len(qualifiers)*len(subjects))
	seen := make(map[string]struct{}, cap(names))
	for _, q := range qualifiers {
		if q == "" {
			continue
		}
		for _, s := range subjects {
			if s == "" {
				continue
			}
			name := q + " " + s
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return &Pool{names: names}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide pool built from the built-in
// vocabularies.
func DefaultPool() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(qualifiers, subjects)
	})
	return defaultPool
}

func (p *Pool) Len() int {
	return len(p.names)
}

// Names returns a copy of the pool in search order.
func (p *Pool) Names() []string {
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

// FirstFree returns the first nickname, in pool order, for which taken
// reports false.
func (p *Pool) FirstFree(taken func(name string) bool) (string, bool) {
	for _, name := range p.names {
		if !taken(name) {
			return name, true
		}
	}
	return "", false
}
