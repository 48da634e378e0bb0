package store

import (
	"fmt"
	"os"
)

// MustTempStore opens a store backed by a temporary file, along with a
// cleanup function that closes the store and removes the file. It
// panics on failure and is meant for tests.
func MustTempStore() (*Store, func()) {
	f, err := os.CreateTemp("", "prism-store-*.db")
	if err != nil {
		panic(fmt.Sprintf("create temp store file: %v", err))
	}
	f.Close()
	st, err := Open(f.Name())
	if err != nil {
		os.Remove(f.Name())
		panic(fmt.Sprintf("open temp store: %v", err))
	}
	return st, func() {
		st.Close()
		os.Remove(f.Name())
	}
}
