package application

import "sync"

type printKey struct {
	deviceID string
	alias    string
}

// ActivePrintIndex links in-flight prints to their archive records. A
// print is registered under several alias spellings when it starts;
// resolving any alias removes every entry pointing at the same archive.
type ActivePrintIndex struct {
	mu      sync.Mutex
	entries map[printKey]string
}

// NewActivePrintIndex constructs an empty index.
func NewActivePrintIndex() *ActivePrintIndex {
	return &ActivePrintIndex{entries: make(map[printKey]string)}
}

// Link registers an alias for the archive. An existing alias is
// overwritten: the newest print wins.
func (i *ActivePrintIndex) Link(deviceID, alias, archiveID string) {
	if alias == "" || archiveID == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[printKey{deviceID: deviceID, alias: alias}] = archiveID
}

// Resolve looks the filename up via its alias candidates and, on a hit,
// removes every alias across all devices that points at the matched
// archive. It reports the archive id and whether a match was found.
func (i *ActivePrintIndex) Resolve(deviceID, filename string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, alias := range AliasCandidates(filename) {
		archiveID, ok := i.entries[printKey{deviceID: deviceID, alias: alias}]
		if !ok {
			continue
		}
		for key, id := range i.entries {
			if id == archiveID {
				delete(i.entries, key)
			}
		}
		return archiveID, true
	}
	return "", false
}

// Len reports the number of linked aliases.
func (i *ActivePrintIndex) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}
