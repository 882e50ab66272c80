package domain

// Location is a service area jobs are tagged with. Immutable after creation.
//
// "All locations" is not a Location: the absence of a location filter is
// expressed as a nil LocationID on a JobFilter, never as a record.
type Location struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}

// Clone returns a copy safe to hand to callers.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
