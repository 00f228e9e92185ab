package auction

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BidEvent is what live watchers of a lot receive.
type BidEvent struct {
	Type        string  `json:"type"`
	AuctionID   uint    `json:"auction_id"`
	CurrentBid  float64 `json:"current_bid,omitempty"`
	BidsCount   int     `json:"bids_count,omitempty"`
	TopBidderID uint    `json:"top_bidder_id,omitempty"`
}

// Hub fans bid events out to everyone watching a lot over websocket.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint]map[*websocket.Conn]bool
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[uint]map[*websocket.Conn]bool),
		log:  log.With(zap.String("service", "auction-hub")),
	}
}

func (h *Hub) Subscribe(auctionID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[*websocket.Conn]bool)
	}
	h.subs[auctionID][conn] = true
}

func (h *Hub) Unsubscribe(auctionID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subs[auctionID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, auctionID)
		}
	}
}

// Broadcast sends the event to every watcher of the lot. Connections that
// fail to take the write are dropped from the hub.
func (h *Hub) Broadcast(event BidEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal bid event", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[event.AuctionID]))
	for conn := range h.subs[event.AuctionID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.Unsubscribe(event.AuctionID, conn)
			conn.Close()
		}
	}
}
