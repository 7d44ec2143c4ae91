package overlay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Allocation is one persisted VNI assignment, keyed by "<lab_id>:<link_id>".
type Allocation struct {
	Key string `json:"key"`
	VNI int    `json:"vni"`
}

// persistedState is the on-disk shape of the allocator's checkpoint file.
type persistedState struct {
	Base        int          `json:"base"`
	Max         int          `json:"max"`
	NextOffset  int          `json:"next_offset"`
	Allocations []Allocation `json:"allocations"`
}

// Allocator hands out stable, persisted VXLAN Network Identifiers per
// (lab_id, link_id), recoverable across restarts. The persistence idiom
// (temp file in the same directory + atomic rename) is grounded on
// aldrin-isaac-newtron's pkg/newtron/spec/loader.go SaveNetwork.
type Allocator struct {
	mu   sync.Mutex
	path string

	base       int
	max        int
	nextOffset int
	byKey      map[string]int
	used       map[int]bool
}

// NewAllocator loads (or initializes) the allocator's checkpoint file under
// dataDir for the VNI range [base, max].
func NewAllocator(dataDir string, base, max int) (*Allocator, error) {
	a := &Allocator{
		path:  filepath.Join(dataDir, "vni_allocations.json"),
		base:  base,
		max:   max,
		byKey: make(map[string]int),
		used:  make(map[int]bool),
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return a, nil
		}
		return nil, fmt.Errorf("reading vni allocation state: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing vni allocation state: %w", err)
	}
	a.nextOffset = state.NextOffset
	for _, alloc := range state.Allocations {
		a.byKey[alloc.Key] = alloc.VNI
		a.used[alloc.VNI] = true
	}
	return a, nil
}

func (a *Allocator) save() error {
	state := persistedState{Base: a.base, Max: a.max, NextOffset: a.nextOffset}
	for key, vni := range a.byKey {
		state.Allocations = append(state.Allocations, Allocation{Key: key, VNI: vni})
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling vni allocation state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating allocator dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "vni_allocations-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func key(labID, linkID string) string { return labID + ":" + linkID }

// Allocate returns the VNI for (labID, linkID), allocating a new one if
// this is the first call for that pair. Walks the range circularly from
// the last offset; fails only when the full range is exhausted.
func (a *Allocator) Allocate(labID, linkID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key(labID, linkID)
	if vni, ok := a.byKey[k]; ok {
		return vni, nil
	}

	rangeSize := a.max - a.base + 1
	for i := 0; i < rangeSize; i++ {
		offset := (a.nextOffset + i) % rangeSize
		candidate := a.base + offset
		if !a.used[candidate] {
			a.byKey[k] = candidate
			a.used[candidate] = true
			a.nextOffset = (offset + 1) % rangeSize
			if err := a.save(); err != nil {
				delete(a.byKey, k)
				delete(a.used, candidate)
				return 0, err
			}
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("vni range [%d, %d] exhausted", a.base, a.max)
}

// Release removes the mapping for one (labID, linkID) pair.
func (a *Allocator) Release(labID, linkID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key(labID, linkID)
	vni, ok := a.byKey[k]
	if !ok {
		return nil
	}
	delete(a.byKey, k)
	delete(a.used, vni)
	return a.save()
}

// ReleaseLab removes every mapping whose key has the "<lab_id>:" prefix.
func (a *Allocator) ReleaseLab(labID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	prefix := labID + ":"
	changed := false
	for k, vni := range a.byKey {
		if strings.HasPrefix(k, prefix) {
			delete(a.byKey, k)
			delete(a.used, vni)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return a.save()
}

// AdoptObserved records a VNI seen on the wire (agent-reported OVS/kernel
// VXLAN interface) but absent from the persisted map, under a placeholder
// key so it is never re-issued to a new link. Used on startup reconciliation
// against agent-reported overlay state.
func (a *Allocator) AdoptObserved(vni int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.used[vni] {
		return nil
	}
	placeholder := fmt.Sprintf("__adopted__:%d", vni)
	a.byKey[placeholder] = vni
	a.used[vni] = true
	return a.save()
}
