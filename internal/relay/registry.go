package relay

// Registry maps a room code to its live connections. It is not safe for
// concurrent use: only the broker loop touches it.
type Registry struct {
	rooms map[string]map[*Connection]struct{}
}

type BroadcastResult struct {
	Delivered int
	Skipped   int
	Dropped   int
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Connection]struct{}),
	}
}

// Register - adds conn to the room, creating the entry on first use. Idempotent.
func (that *Registry) Register(code string, conn *Connection) {
	members, ok := that.rooms[code]
	if !ok {
		members = make(map[*Connection]struct{})
		that.rooms[code] = members
	}

	members[conn] = struct{}{}
}

// Unregister - removes conn and drops the room entry once it is empty. Reports whether conn was a member.
func (that *Registry) Unregister(code string, conn *Connection) bool {
	members, ok := that.rooms[code]
	if !ok {
		return false
	}

	if _, ok = members[conn]; !ok {
		return false
	}

	delete(members, conn)

	if len(members) == 0 {
		delete(that.rooms, code)
	}

	return true
}

// Broadcast - queues payload for every open member of the room except sender.
// Closed members are skipped; their own close handler removes them.
func (that *Registry) Broadcast(code string, sender *Connection, payload []byte) BroadcastResult {
	var result BroadcastResult

	for member := range that.rooms[code] {
		if member == sender {
			continue
		}

		if !member.IsOpen() {
			result.Skipped++
			continue
		}

		if !member.enqueue(payload) {
			result.Dropped++
			continue
		}

		result.Delivered++
	}

	return result
}

func (that *Registry) Members(code string) int {
	return len(that.rooms[code])
}

func (that *Registry) Has(code string) bool {
	_, ok := that.rooms[code]
	return ok
}

// Rooms - number of rooms with at least one live connection.
func (that *Registry) Rooms() int {
	return len(that.rooms)
}

func (that *Registry) Connections() int {
	total := 0
	for _, members := range that.rooms {
		total += len(members)
	}

	return total
}

// drain - removes every connection and hands each one to fn.
func (that *Registry) drain(fn func(conn *Connection)) {
	for code, members := range that.rooms {
		for conn := range members {
			fn(conn)
		}

		delete(that.rooms, code)
	}
}
