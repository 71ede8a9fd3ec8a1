package core

// broadcastGroup groups clients subscribed to the same room. Membership
// changes only on the hub loop; it is the explicit subscribe/unsubscribe
// abstraction behind room fan-out.
type broadcastGroup struct {
	name    string
	clients map[*Client]struct{}
}

func newBroadcastGroup(name string) *broadcastGroup {
	return &broadcastGroup{
		name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// subscribe inserts a client into the group. Returns true if newly added.
func (g *broadcastGroup) subscribe(c *Client) bool {
	if _, exists := g.clients[c]; exists {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

// unsubscribe deletes a client from the group. Returns true if removed.
func (g *broadcastGroup) unsubscribe(c *Client) bool {
	if _, exists := g.clients[c]; !exists {
		return false
	}
	delete(g.clients, c)
	return true
}

// broadcast sends an event to all clients in the group.
func (g *broadcastGroup) broadcast(event *Event) {
	for client := range g.clients {
		client.send(event)
	}
}

// broadcastExcept sends an event to all clients except one.
func (g *broadcastGroup) broadcastExcept(event *Event, skip *Client) {
	for client := range g.clients {
		if client == skip {
			continue
		}
		client.send(event)
	}
}

// empty returns true if no clients are in the group.
func (g *broadcastGroup) empty() bool {
	return len(g.clients) == 0
}
