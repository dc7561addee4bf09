package index

import (
	"fmt"
	"sync"
)

// Loader constructs an empty index of a registered kind, ready to be filled
// by UnmarshalBinary.
type Loader func() Index

var (
	loaderMu sync.RWMutex
	loaders  = map[Kind]Loader{}
)

// Register registers a loader for a specific index kind.
//
// Index implementations should typically call this from an init() function.
func Register(kind Kind, loader Loader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaders[kind] = loader
}

func lookup(kind Kind) (Loader, error) {
	loaderMu.RLock()
	defer loaderMu.RUnlock()

	loader, ok := loaders[kind]
	if !ok {
		return nil, fmt.Errorf("unregistered index kind %s", kind)
	}
	return loader, nil
}
