//go:build !unix

package region

// Map falls back to reading the whole file where mmap is unavailable.
func Map(path string) (*File, error) { return ReadFile(path) }
