package namegen

import (
	"sync"

	vendor "github.com/anandvarma/namegen"
)

var (
	mu  sync.Mutex
	gen = vendor.New()
)

// ID is a random, human friendly name used to tell nodes apart.
type ID string

// Get returns a new ID. It is safe for concurrent use.
func Get() ID {
	mu.Lock()
	defer mu.Unlock()
	return ID(gen.Get())
}

func (id ID) String() string {
	return string(id)
}
