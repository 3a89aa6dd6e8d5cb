package main

import (
	"log"
	"sync"
)

// ResultWriter persists finished-game results on a background goroutine so
// database writes never touch a room's tick or end-sequence path.
type ResultWriter struct {
	db      *DB
	results chan *GameResult
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewResultWriter creates and starts the background writer. A nil db yields
// a writer that drops results (rooms stay agnostic of persistence being
// disabled).
func NewResultWriter(db *DB) *ResultWriter {
	rw := &ResultWriter{
		db:      db,
		results: make(chan *GameResult, 64),
		stop:    make(chan struct{}),
	}
	rw.wg.Add(1)
	go rw.writer()
	return rw
}

// RecordResult enqueues a result for async persistence (non-blocking).
func (rw *ResultWriter) RecordResult(res *GameResult) {
	select {
	case rw.results <- res:
	default:
		// Channel full: drop rather than blocking the end sequence
		log.Printf("results: queue full, dropping result for room %s", res.RoomID)
	}
}

// Stop drains pending results and shuts the writer down.
func (rw *ResultWriter) Stop() {
	close(rw.stop)
	rw.wg.Wait()
}

// writer is the background goroutine persisting results one at a time.
func (rw *ResultWriter) writer() {
	defer rw.wg.Done()
	for {
		select {
		case res := <-rw.results:
			rw.persist(res)
		case <-rw.stop:
			// Drain whatever is queued before exiting
			for {
				select {
				case res := <-rw.results:
					rw.persist(res)
				default:
					return
				}
			}
		}
	}
}

func (rw *ResultWriter) persist(res *GameResult) {
	if rw.db == nil {
		return
	}
	if err := rw.db.RecordMatch(res.RoomID, res.Tier, res.Duration, res.WinnerID, res.PlayerCount); err != nil {
		log.Printf("results: record match %s: %v", res.RoomID, err)
		return
	}
	for _, entry := range res.Rankings {
		stats := res.Stats[entry.ID]
		err := rw.db.RecordMatchPlayer(
			res.RoomID, entry.ID, entry.Name, res.Bots[entry.ID], entry.Rank,
			entry.Mass, stats.MaxMass, stats.PelletsEaten, stats.CellsEaten,
			stats.LeaderTime, stats.TimeSurvived,
		)
		if err != nil {
			log.Printf("results: record player %s in match %s: %v", entry.ID, res.RoomID, err)
		}
		if authID, ok := res.AuthIDs[entry.ID]; ok {
			won := entry.ID == res.WinnerID
			if err := rw.db.UpdateStatsAfterMatch(authID, won, stats.MaxMass, stats.CellsEaten, stats.TimeSurvived); err != nil {
				log.Printf("results: update stats for account %d: %v", authID, err)
			}
		}
	}
}
