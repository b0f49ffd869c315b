package memory

import (
	"context"
	"fmt"

	"trackcore/pkg/domain"
)

type staged struct {
	obj domain.Object
	rec domain.Record
}

// unit is the persister handed to one outermost scope. It exports records
// when changes are staged and applies them on Flush.
type unit struct {
	store    *Store
	upserts  []staged
	added    map[domain.Object]bool
	deletes  []domain.Ref
	resolved map[domain.Object]int64
	closed   bool
}

func (u *unit) Save(added, updated []domain.Object) error {
	if u.closed {
		return ErrClosed
	}
	if u.added == nil {
		u.added = make(map[domain.Object]bool)
	}
	for _, obj := range added {
		if err := u.stage(obj); err != nil {
			return err
		}
		u.added[obj] = true
	}
	for _, obj := range updated {
		if err := u.stage(obj); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) stage(obj domain.Object) error {
	rec, err := obj.ExportRecord()
	if err != nil {
		return fmt.Errorf("export %s: %w", domain.Key(obj.Category(), obj.Tracking().ID()), err)
	}
	if rec.ID == 0 {
		return fmt.Errorf("export %s: object has no id", obj.Category())
	}
	if rec.ID < 0 && !u.store.generated {
		return fmt.Errorf("export %s: placeholder id but the store does not generate ids", rec.Key())
	}
	u.upserts = append(u.upserts, staged{obj: obj, rec: rec})
	return nil
}

func (u *unit) Delete(removed []domain.Object) error {
	if u.closed {
		return ErrClosed
	}
	for _, obj := range removed {
		id := obj.Tracking().ID()
		if id <= 0 {
			continue
		}
		u.deletes = append(u.deletes, domain.Ref{Category: obj.Category(), ID: id})
	}
	return nil
}

func (u *unit) Flush(ctx context.Context) error {
	if u.closed {
		return ErrClosed
	}
	var resolved map[domain.Object]int64
	err := u.store.apply(ctx, func() (Delta, error) {
		var err error
		resolved, err = u.resolve()
		if err != nil {
			return Delta{}, err
		}
		delta := Delta{Deletes: append([]domain.Ref(nil), u.deletes...)}
		for _, st := range u.upserts {
			rec := st.rec.Clone()
			if id, ok := resolved[st.obj]; ok {
				rec.ID = id
			}
			if err := remapRefs(&rec, resolved); err != nil {
				return Delta{}, err
			}
			delta.Upserts = append(delta.Upserts, rec)
		}
		return delta, nil
	})
	if err != nil {
		return err
	}
	u.resolved = resolved
	u.Discard()
	return nil
}

// resolve assigns final ids to added objects that still carry placeholder
// ids. Caller holds the store's write lock.
func (u *unit) resolve() (map[domain.Object]int64, error) {
	resolved := make(map[domain.Object]int64)
	if !u.store.generated {
		return resolved, nil
	}
	issued := make(map[domain.Category]int64)
	for _, st := range u.upserts {
		if !u.added[st.obj] || st.rec.ID > 0 {
			continue
		}
		resolved[st.obj] = u.store.nextID(st.rec.Category, issued)
	}
	return resolved, nil
}

// remapRefs rewrites references to placeholder ids of objects added in the
// same flush.
func remapRefs(rec *domain.Record, resolved map[domain.Object]int64) error {
	if len(rec.Refs) == 0 {
		return nil
	}
	byPlaceholder := make(map[domain.Ref]int64, len(resolved))
	for obj, id := range resolved {
		byPlaceholder[domain.Ref{Category: obj.Category(), ID: obj.Tracking().ID()}] = id
	}
	for name, refs := range rec.Refs {
		for i, ref := range refs {
			if ref.ID > 0 {
				continue
			}
			id, ok := byPlaceholder[ref]
			if !ok {
				return fmt.Errorf("%s link %q targets %s which is not being saved", rec.Key(), name, ref)
			}
			refs[i].ID = id
		}
	}
	return nil
}

func (u *unit) ResolvedID(obj domain.Object) (int64, bool) {
	id, ok := u.resolved[obj]
	return id, ok
}

func (u *unit) Discard() {
	u.upserts = nil
	u.deletes = nil
	u.added = nil
}

func (u *unit) Close() error {
	u.Discard()
	u.closed = true
	return nil
}
