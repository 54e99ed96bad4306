package cache

// Key identifies a cache entry. Using a struct rather than a joined string
// keeps distinct (fingerprint, variant) pairs from colliding no matter what
// characters either half contains.
type Key struct {
	Fingerprint string
	Variant     string
}

// KeyFor builds the key for a fingerprint and model variant.
func KeyFor(fingerprint, variant string) Key {
	return Key{Fingerprint: fingerprint, Variant: variant}
}

// String renders the key for logs and for in-flight bookkeeping.
func (k Key) String() string {
	return k.Fingerprint + "|" + k.Variant
}
