package reddit

// recentSet remembers the last capacity keys added, evicting the oldest.
type recentSet struct {
	keys  map[string]struct{}
	order []string
	next  int
}

func newRecentSet(capacity int) *recentSet {
	if capacity < 1 {
		capacity = 1
	}
	return &recentSet{
		keys:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

// Add inserts key and reports whether it was not already present.
func (r *recentSet) Add(key string) bool {
	if _, ok := r.keys[key]; ok {
		return false
	}

	if len(r.order) < cap(r.order) {
		r.order = append(r.order, key)
	} else {
		delete(r.keys, r.order[r.next])
		r.order[r.next] = key
		r.next = (r.next + 1) % len(r.order)
	}
	r.keys[key] = struct{}{}
	return true
}
