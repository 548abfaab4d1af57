package webd

import (
	"encoding/json"
	"github.com/olahol/melody"
	"github.com/rotblauer/tripd/geo/tripdetector"
	"log/slog"
)

type websocketAction string

var websocketActionTrips websocketAction = "trips"

type broadcast struct {
	Action websocketAction     `json:"action"`
	Trips  []tripdetector.Trip `json:"trips"`
}

// initMelody sets up the websocket handler.
// Every connected client gets each batch of newly extracted trips.
func (s *WebDaemon) initMelody() {
	m := melody.New()
	s.melodyInstance = m
	logger := s.logger.With("ws", true)

	// Catch a new client up with the results still in the cache.
	m.HandleConnect(func(sess *melody.Session) {
		logger.Info("Connected", "remote", sess.Request.RemoteAddr)
		if s.results == nil {
			return
		}
		for _, item := range s.results.Items() {
			trips := item.Value().Trips
			if len(trips) == 0 {
				continue
			}
			b, _ := json.Marshal(broadcast{Action: websocketActionTrips, Trips: trips})
			_ = sess.Write(b)
		}
	})

	// Right now don't care about incoming messages from clients. Log and drop.
	m.HandleMessage(func(sess *melody.Session, msg []byte) {
		logger.Debug("Message", "remote", sess.Request.RemoteAddr, "msg", string(msg))
	})

	m.HandleDisconnect(func(sess *melody.Session) {
		logger.Info("Disconnected", "remote", sess.Request.RemoteAddr)
	})

	m.HandleError(func(sess *melody.Session, e error) {
		logger.Warn("Error", "error", e, "remote", sess.Request.RemoteAddr)
	})

	tripsCh := make(chan []tripdetector.Trip)
	sub := s.feedTrips.Subscribe(tripsCh)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case trips := <-tripsCh:
				b, err := json.Marshal(broadcast{Action: websocketActionTrips, Trips: trips})
				if err != nil {
					slog.Error("Failed to marshal trips event", "error", err)
					continue
				}
				if err := m.Broadcast(b); err != nil {
					// Broadcast fails only once the instance is closed.
					return
				}
			case err := <-sub.Err():
				if err != nil {
					slog.Error("Trips feed subscription failed", "error", err)
				}
				return
			}
		}
	}()
}
