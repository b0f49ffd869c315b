package domain

// CollectionAction describes how identity map membership changed.
type CollectionAction int

const (
	// ActionAdd reports objects inserted into the identity map.
	ActionAdd CollectionAction = iota
	// ActionRemove reports objects dropped from the identity map.
	ActionRemove
)

func (a CollectionAction) String() string {
	if a == ActionRemove {
		return "remove"
	}
	return "add"
}

// CollectionEvent is the batched notification raised once per identity map
// Load, Drop or Add call.
type CollectionEvent struct {
	Action  CollectionAction
	Objects []Object
}
