package server

// Room is a named, ordered group of member connections. Insertion order is
// the order used for fan-out and membership snapshots.
type Room struct {
	name    string
	members []*Client
}

func newRoom(name string) *Room {
	return &Room{name: name}
}

func (r *Room) add(c *Client) {
	r.members = append(r.members, c)
}

func (r *Room) removeAt(i int) *Client {
	c := r.members[i]
	r.members = append(r.members[:i], r.members[i+1:]...)
	return c
}

// indexByName returns the first member named name, or -1.
func (r *Room) indexByName(name string) int {
	for i, m := range r.members {
		if m.name == name {
			return i
		}
	}
	return -1
}

// indexOf finds c by connection id, or -1.
func (r *Room) indexOf(c *Client) int {
	for i, m := range r.members {
		if m.id == c.id {
			return i
		}
	}
	return -1
}

func (r *Room) names() []string {
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.name
	}
	return names
}

// fanOut queues payload to every member and returns those whose buffer was full.
func (r *Room) fanOut(payload []byte) (delivered int, failed []*Client) {
	for _, m := range r.members {
		if m.enqueue(payload) {
			delivered++
			continue
		}
		failed = append(failed, m)
	}
	return delivered, failed
}
