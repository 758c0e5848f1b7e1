package websocket

import (
	"context"
	"log/slog"
)

type membership struct {
	client *Client
	roomID string
}

type roomFrame struct {
	roomID string
	frame  []byte
	except *Client
}

type userFrame struct {
	userID string
	frame  []byte
}

type clientFrame struct {
	client *Client
	frame  []byte
}

type roomSizeQuery struct {
	roomID string
	reply  chan int
}

// Hub routes frames between connections. It owns room membership: rooms,
// users and clients are only touched by the Run goroutine, everyone else
// goes through its methods.
//
// Requests are handed over on unbuffered channels, so frames issued by one
// goroutine are delivered in the order they were issued.
type Hub struct {
	rooms       map[string]map[*Client]struct{}
	users       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}

	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	roomcast   chan roomFrame
	direct     chan userFrame
	reply      chan clientFrame
	disconnect chan string
	roomSize   chan roomSizeQuery

	done chan struct{}
	log  *slog.Logger
}

// NewHub creates a new Hub. Nothing is routed until Run is started.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		users:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		join:        make(chan membership),
		leave:       make(chan membership),
		roomcast:    make(chan roomFrame),
		direct:      make(chan userFrame),
		reply:       make(chan clientFrame),
		disconnect:  make(chan string),
		roomSize:    make(chan roomSizeQuery),
		done:        make(chan struct{}),
		log:         log.With("component", "hub"),
	}
}

// Run processes hub requests until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("hub started")
	defer func() {
		for c := range h.memberships {
			h.drop(c)
		}
		close(h.done)
		h.log.Info("hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.memberships[c] = make(map[string]struct{})
			addTo(h.users, c.UserID(), c)
			h.log.Debug("client registered", "user_id", c.UserID())

		case c := <-h.unregister:
			h.drop(c)

		case m := <-h.join:
			rooms, ok := h.memberships[m.client]
			if !ok {
				continue
			}
			rooms[m.roomID] = struct{}{}
			addTo(h.rooms, m.roomID, m.client)

		case m := <-h.leave:
			if rooms, ok := h.memberships[m.client]; ok {
				delete(rooms, m.roomID)
			}
			removeFrom(h.rooms, m.roomID, m.client)

		case f := <-h.roomcast:
			for c := range h.rooms[f.roomID] {
				if c != f.except {
					h.deliver(c, f.frame)
				}
			}

		case f := <-h.direct:
			for c := range h.users[f.userID] {
				h.deliver(c, f.frame)
			}

		case f := <-h.reply:
			if _, ok := h.memberships[f.client]; ok {
				h.deliver(f.client, f.frame)
			}

		case userID := <-h.disconnect:
			for c := range h.users[userID] {
				h.drop(c)
			}

		case q := <-h.roomSize:
			q.reply <- len(h.rooms[q.roomID])
		}
	}
}

// deliver enqueues without blocking the hub. A client whose buffer is full
// is too slow to keep up and is dropped.
func (h *Hub) deliver(c *Client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		h.log.Warn("send buffer full, dropping client", "user_id", c.UserID())
		h.drop(c)
	}
}

// drop removes c from every room and closes its send channel, which makes
// its write pump close the connection. Dropping twice is a no-op.
func (h *Hub) drop(c *Client) {
	rooms, ok := h.memberships[c]
	if !ok {
		return
	}
	for roomID := range rooms {
		removeFrom(h.rooms, roomID, c)
	}
	delete(h.memberships, c)
	removeFrom(h.users, c.UserID(), c)
	close(c.send)
	h.log.Debug("client unregistered", "user_id", c.UserID(), "rooms", len(rooms))
}

func addTo(index map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Client]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func removeFrom(index map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(index, key)
	}
}

// submit hands a request to Run, giving up once the hub has stopped.
func submit[T any](h *Hub, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.done:
	}
}

func (h *Hub) Register(c *Client)   { submit(h, h.register, c) }
func (h *Hub) Unregister(c *Client) { submit(h, h.unregister, c) }

// Join adds c to roomID. Joining twice is harmless.
func (h *Hub) Join(c *Client, roomID string) { submit(h, h.join, membership{client: c, roomID: roomID}) }

// Leave removes c from roomID. Leaving a room c is not in is harmless.
func (h *Hub) Leave(c *Client, roomID string) { submit(h, h.leave, membership{client: c, roomID: roomID}) }

// BroadcastToRoom delivers frame to every client in roomID except the given
// one, which may be nil.
func (h *Hub) BroadcastToRoom(roomID string, frame []byte, except *Client) {
	submit(h, h.roomcast, roomFrame{roomID: roomID, frame: frame, except: except})
}

// SendToUser delivers frame to every connection of userID, in any room.
func (h *Hub) SendToUser(userID string, frame []byte) {
	submit(h, h.direct, userFrame{userID: userID, frame: frame})
}

// SendToClient delivers frame to c alone if it is still registered.
func (h *Hub) SendToClient(c *Client, frame []byte) {
	submit(h, h.reply, clientFrame{client: c, frame: frame})
}

// DisconnectUser closes every connection of userID.
func (h *Hub) DisconnectUser(userID string) { submit(h, h.disconnect, userID) }

// RoomSize returns how many connections are joined to roomID.
func (h *Hub) RoomSize(roomID string) int {
	q := roomSizeQuery{roomID: roomID, reply: make(chan int, 1)}
	select {
	case h.roomSize <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}
