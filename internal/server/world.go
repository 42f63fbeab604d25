package server

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/doudizhu/internal/game"
	"github.com/lox/doudizhu/internal/profiles"
	"github.com/lox/doudizhu/internal/protocol"
)

// World is the single-threaded game schedule. Connections feed sessions from
// their read goroutines; everything else, sessions, tables and seats, mutates
// only inside the tick.
type World struct {
	cfg        *Config
	logger     *log.Logger
	store      profiles.Store
	rng        *rand.Rand
	clock      quartz.Clock
	dispatcher *Dispatcher

	// mu guards pending, the only state connection goroutines touch.
	mu      sync.Mutex
	pending []*Session

	// sessions, tables and open belong to the tick goroutine alone.
	sessions []*Session
	tables   []*game.Table
	open     map[uint32]*game.Table
}

// NewWorld wires the world against its collaborators. The clock is injected
// so tests can drive ticks manually.
func NewWorld(cfg *Config, store profiles.Store, rng *rand.Rand, clock quartz.Clock, logger *log.Logger) *World {
	w := &World{
		cfg:        cfg,
		logger:     logger.WithPrefix("world"),
		store:      store,
		rng:        rng,
		clock:      clock,
		dispatcher: newDispatcher(),
		open:       make(map[uint32]*game.Table),
	}
	w.dispatcher.Handle(protocol.OpLogin, w.handleLogin)
	w.dispatcher.Handle(protocol.OpGrabLandlord, w.handleGrabLandlord)
	w.dispatcher.Handle(protocol.OpPlayCard, w.handlePlayCard)
	return w
}

// NewSession constructs a session for an authenticated-pending connection.
func (w *World) NewSession(accountID uint32, conn *Connection) *Session {
	return newSession(accountID, conn, w, w.logger)
}

// AddSession queues a session for adoption on the next tick. The live session
// list belongs to the tick goroutine, so a duplicate of an already-adopted
// account is detected there, at adoption time; only duplicates still sitting
// in the pending queue are kicked here.
func (w *World) AddSession(s *Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, old := range w.pending {
		if old.accountID == s.accountID {
			old.Kick()
		}
	}
	w.pending = append(w.pending, s)
}

// Run drives the tick loop until ctx is cancelled.
func (w *World) Run(ctx context.Context) error {
	interval := w.cfg.Tick()
	w.logger.Info("world running", "tick", interval)
	ticker := w.clock.TickerFunc(ctx, interval, func() error {
		w.update(interval)
		return nil
	}, "world-tick")
	err := ticker.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// update is one tick: adopt pending sessions, advance live sessions, advance
// tables, then disband the ones that finished or lost all humans.
func (w *World) update(diff time.Duration) {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()
	for _, s := range pending {
		for _, old := range w.sessions {
			if old.accountID == s.accountID {
				w.logger.Warn("account logged in twice, kicking older session", "account", s.accountID)
				old.Kick()
			}
		}
		w.sessions = append(w.sessions, s)
	}

	live := w.sessions[:0]
	for _, s := range w.sessions {
		if s.Update(diff) {
			live = append(live, s)
		}
	}
	w.sessions = live

	// Requeueing during a disband opens fresh tables, so they accumulate on
	// w.tables while this sweep walks a snapshot; the two are merged after.
	snapshot := w.tables
	w.tables = nil
	var kept []*game.Table
	for _, t := range snapshot {
		t.Update(diff)
		switch {
		case t.Finished():
			w.disband(t, true)
		case t.Dead():
			w.disband(t, false)
		default:
			kept = append(kept, t)
		}
	}
	w.tables = append(kept, w.tables...)
}

// disband retires a table. After a completed round the surviving humans are
// requeued into the open table for the same room so play continues without a
// fresh login.
func (w *World) disband(t *game.Table, requeue bool) {
	if w.open[t.Tier()] == t {
		delete(w.open, t.Tier())
	}
	w.logger.Info("table disbanded", "tier", t.Tier(), "requeue", requeue)

	for _, seat := range t.Seats() {
		sess := w.sessionForSeat(seat)
		if sess == nil {
			continue
		}
		sess.ClearSeat()
		if requeue {
			if _, err := w.seatSession(sess, t.Tier()); err != nil {
				w.logger.Error("failed to requeue session", "account", sess.accountID, "error", err)
				sess.Kick()
			}
		}
	}
}

func (w *World) sessionForSeat(seat *game.Seat) *Session {
	for _, s := range w.sessions {
		if s.seat == seat {
			return s
		}
	}
	return nil
}

// seatSession places a session at the filling table for a room, creating a
// fresh table when none is open or the open one is already full.
func (w *World) seatSession(s *Session, roomID uint32) (game.Profile, error) {
	tbl := w.open[roomID]
	if tbl == nil || tbl.Full() {
		tbl = game.NewTable(roomID, w.cfg.Rules(), w.rng, w.logger)
		tbl.OnSettle(func(accountID uint32, p game.Profile) {
			if err := w.store.Save(accountID, p); err != nil {
				w.logger.Error("failed to save profile", "account", accountID, "error", err)
			}
		})
		w.tables = append(w.tables, tbl)
		w.open[roomID] = tbl
	}

	profile, err := w.store.Load(s.accountID)
	if err != nil {
		return game.Profile{}, fmt.Errorf("server: load profile: %w", err)
	}

	seat := game.NewSeat(s.accountID, game.Human, s, profile, w.cfg.Rules())
	if _, err := tbl.AddSeat(seat); err != nil {
		return game.Profile{}, fmt.Errorf("server: seat account %d: %w", s.accountID, err)
	}
	s.seat = seat
	return profile, nil
}

// dispatch routes one drained packet. Unknown opcodes are dropped with a log
// line, never fatal.
func (w *World) dispatch(s *Session, pkt *protocol.Packet) {
	if !w.dispatcher.Dispatch(s, pkt) {
		w.logger.Warn("unhandled opcode", "account", s.accountID, "opcode", pkt.Opcode())
	}
}

func (w *World) handleLogin(s *Session, pkt *protocol.Packet) {
	if s.loggedIn {
		w.logger.Warn("duplicate login packet", "account", s.accountID)
		return
	}

	accountID, err := pkt.Uint32()
	if err != nil {
		s.Kick()
		return
	}
	roomID, err := pkt.Uint32()
	if err != nil {
		s.Kick()
		return
	}
	// sameRoom asks to rejoin friends at the filling table; seating already
	// targets that table, so the flag is advisory.
	sameRoom, _ := pkt.Uint32()

	if accountID != s.accountID {
		w.logger.Warn("login account mismatch", "session", s.accountID, "packet", accountID)
		s.Kick()
		return
	}

	profile, err := w.seatSession(s, roomID)
	if err != nil {
		w.logger.Error("login failed", "account", s.accountID, "error", err)
		s.Kick()
		return
	}
	s.loggedIn = true

	out := protocol.New(protocol.OpLoginResult)
	out.WriteUint32(1)
	profile.EncodeTo(out)
	s.Send(out)

	w.logger.Info("login", "account", s.accountID, "room", roomID, "sameRoom", sameRoom)
}

func (w *World) handleGrabLandlord(s *Session, pkt *protocol.Packet) {
	if s.seat == nil {
		return
	}
	seatID, err := pkt.Uint32()
	if err != nil {
		return
	}
	score, err := pkt.Uint32()
	if err != nil {
		return
	}
	if seatID != s.seat.ID() {
		w.logger.Warn("bid for foreign seat", "account", s.accountID, "seat", seatID)
		return
	}
	if err := s.seat.PlaceBid(int32(score)); err != nil {
		w.logger.Warn("bid rejected", "account", s.accountID, "error", err)
	}
}

func (w *World) handlePlayCard(s *Session, pkt *protocol.Packet) {
	if s.seat == nil {
		return
	}
	seatID, err := pkt.Uint32()
	if err != nil {
		return
	}
	comboType, err := pkt.Uint32()
	if err != nil {
		return
	}
	cards, err := pkt.Bytes(game.PlayBufferSize)
	if err != nil {
		return
	}
	if seatID != s.seat.ID() {
		w.logger.Warn("play for foreign seat", "account", s.accountID, "seat", seatID)
		return
	}
	if err := s.seat.CommitPlay(comboType, cards); err != nil {
		w.logger.Warn("play rejected", "account", s.accountID, "error", err)
	}
}

// SessionCount reports live sessions, for tests and diagnostics.
func (w *World) SessionCount() int {
	return len(w.sessions)
}

// TableCount reports live tables, for tests and diagnostics.
func (w *World) TableCount() int {
	return len(w.tables)
}
