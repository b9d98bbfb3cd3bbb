package identity

import (
	"fmt"
	"sort"
)

// Directory supplies the set of known parties and the notarization authority.
//
// Implementations return snapshots: callers must treat results as potentially
// stale and re-read the directory before each new protocol instance.
type Directory interface {
	// AllParties returns every known party, notary included, sorted by name.
	AllParties() []Party
	// Notary returns the designated notarization authority.
	Notary() Party
	// Lookup returns the party with the given name.
	Lookup(name string) (Party, bool)
}

// StaticDirectory is a fixed in-memory Directory, typically loaded from a
// network map document at process start.
type StaticDirectory struct {
	parties []Party
	byName  map[string]Party
	notary  string
}

// NewStaticDirectory builds a directory from a party list and the name of
// the notary, which must be among the parties.
func NewStaticDirectory(parties []Party, notaryName string) (*StaticDirectory, error) {
	if len(parties) == 0 {
		return nil, fmt.Errorf("directory requires at least one party")
	}
	byName := make(map[string]Party, len(parties))
	for _, p := range parties {
		if err := CheckName(p.Name); err != nil {
			return nil, err
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate party name %q", p.Name)
		}
		if _, _, err := PublicKeyBytes(p.Key); err != nil {
			return nil, fmt.Errorf("party %q: %w", p.Name, err)
		}
		byName[p.Name] = p
	}
	if _, ok := byName[notaryName]; !ok {
		return nil, fmt.Errorf("notary %q is not a known party", notaryName)
	}
	sorted := append([]Party(nil), parties...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &StaticDirectory{parties: sorted, byName: byName, notary: notaryName}, nil
}

func (d *StaticDirectory) AllParties() []Party {
	return append([]Party(nil), d.parties...)
}

func (d *StaticDirectory) Notary() Party {
	return d.byName[d.notary]
}

func (d *StaticDirectory) Lookup(name string) (Party, bool) {
	p, ok := d.byName[name]
	return p, ok
}
