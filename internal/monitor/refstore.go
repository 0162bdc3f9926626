package monitor

import (
	"context"

	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/identify"
)

// MuzzleReferenceStore exposes the registered muzzle prints from the
// datastore to the identification resolver.
type MuzzleReferenceStore struct {
	ds datastore.Interface
}

// NewMuzzleReferenceStore creates a reference store over the datastore.
func NewMuzzleReferenceStore(ds datastore.Interface) *MuzzleReferenceStore {
	return &MuzzleReferenceStore{ds: ds}
}

// MuzzleReferences returns one reference per animal with a stored muzzle
// print hash.
func (s *MuzzleReferenceStore) MuzzleReferences(_ context.Context) ([]identify.MuzzleReference, error) {
	animals, err := s.ds.ListAnimals()
	if err != nil {
		return nil, err
	}
	refs := make([]identify.MuzzleReference, 0, len(animals))
	for i := range animals {
		if animals[i].MuzzlePrintHash == "" {
			continue
		}
		refs = append(refs, identify.MuzzleReference{
			AnimalID: animals[i].ID,
			TagID:    animals[i].TagID,
			Hash:     animals[i].MuzzlePrintHash,
		})
	}
	return refs, nil
}
