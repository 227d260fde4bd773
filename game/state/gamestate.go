// Package state holds the server-authoritative switches and variables shared by
// every battle, persisted to the database in batches.
package state

import (
	"sync"
	"time"

	"github.com/kasuganosora/battleevent/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameState holds global switches and variables. It satisfies
// interpreter.GameState and is safe for concurrent battles: each event command
// runs under Exclusive, so read-modify-write commands never interleave.
type GameState struct {
	exec      sync.Mutex // one event command at a time across battles
	mu        sync.RWMutex
	switches  map[int]bool
	variables map[int]int
	db        *gorm.DB // nil = no persistence
	logger    *zap.Logger

	pendingMu   sync.Mutex
	pendingSw   map[int]bool
	pendingVar  map[int]int
	flushTicker *time.Ticker
	stopCh      chan struct{}
	doneCh      chan struct{}
	stopOnce    sync.Once
}

// New creates an empty GameState. With a non-nil db, dirty values are written
// every flushInterval (5s when zero) and on Stop.
func New(db *gorm.DB, flushInterval time.Duration, logger *zap.Logger) *GameState {
	if logger == nil {
		logger = zap.NewNop()
	}
	gs := &GameState{
		switches:   make(map[int]bool),
		variables:  make(map[int]int),
		db:         db,
		logger:     logger,
		pendingSw:  make(map[int]bool),
		pendingVar: make(map[int]int),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	if db != nil {
		if flushInterval <= 0 {
			flushInterval = 5 * time.Second
		}
		gs.flushTicker = time.NewTicker(flushInterval)
		go gs.batchFlusher()
	} else {
		close(gs.doneCh)
	}
	return gs
}

// Stop stops the background flusher and flushes remaining changes.
func (gs *GameState) Stop() {
	gs.stopOnce.Do(func() {
		if gs.flushTicker == nil {
			return
		}
		gs.flushTicker.Stop()
		close(gs.stopCh)
		<-gs.doneCh
		if err := gs.Flush(); err != nil {
			gs.logger.Error("final game state flush failed", zap.Error(err))
		}
	})
}

func (gs *GameState) batchFlusher() {
	defer close(gs.doneCh)
	for {
		select {
		case <-gs.flushTicker.C:
			if err := gs.Flush(); err != nil {
				gs.logger.Error("failed to flush game state", zap.Error(err))
			}
		case <-gs.stopCh:
			return
		}
	}
}

// Flush writes all pending changes to the database in one transaction.
// On failure the changes are re-queued unless a newer value arrived meanwhile.
func (gs *GameState) Flush() error {
	if gs.db == nil {
		return nil
	}

	gs.pendingMu.Lock()
	if len(gs.pendingSw) == 0 && len(gs.pendingVar) == 0 {
		gs.pendingMu.Unlock()
		return nil
	}
	sw, vars := gs.pendingSw, gs.pendingVar
	gs.pendingSw = make(map[int]bool)
	gs.pendingVar = make(map[int]int)
	gs.pendingMu.Unlock()

	err := gs.db.Transaction(func(tx *gorm.DB) error {
		for id, val := range sw {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "switch_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&model.GameSwitch{SwitchID: id, Value: val}).Error; err != nil {
				return err
			}
		}
		for id, val := range vars {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "variable_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&model.GameVariable{VariableID: id, Value: val}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		gs.pendingMu.Lock()
		for id, val := range sw {
			if _, newer := gs.pendingSw[id]; !newer {
				gs.pendingSw[id] = val
			}
		}
		for id, val := range vars {
			if _, newer := gs.pendingVar[id]; !newer {
				gs.pendingVar[id] = val
			}
		}
		gs.pendingMu.Unlock()
	}
	return err
}

// Pending returns the number of values waiting to be flushed.
func (gs *GameState) Pending() int {
	gs.pendingMu.Lock()
	defer gs.pendingMu.Unlock()
	return len(gs.pendingSw) + len(gs.pendingVar)
}

// LoadFromDB populates the in-memory state from the database.
// Call once at startup after New.
func (gs *GameState) LoadFromDB() error {
	if gs.db == nil {
		return nil
	}
	var switches []model.GameSwitch
	if err := gs.db.Find(&switches).Error; err != nil {
		return err
	}
	var vars []model.GameVariable
	if err := gs.db.Find(&vars).Error; err != nil {
		return err
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()
	for _, s := range switches {
		gs.switches[s.SwitchID] = s.Value
	}
	for _, v := range vars {
		gs.variables[v.VariableID] = v.Value
	}
	gs.logger.Info("game state loaded",
		zap.Int("switches", len(switches)),
		zap.Int("variables", len(vars)))
	return nil
}

// GetSwitch returns the value of a global switch.
func (gs *GameState) GetSwitch(id int) bool {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.switches[id]
}

// Exclusive runs fn while no other event command touches the state.
func (gs *GameState) Exclusive(fn func()) {
	gs.exec.Lock()
	defer gs.exec.Unlock()
	fn()
}

// SetSwitch sets a global switch and queues it for persistence.
func (gs *GameState) SetSwitch(id int, val bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.switches[id] = val

	// queued under mu so the pending value always matches memory
	if gs.db != nil {
		gs.pendingMu.Lock()
		gs.pendingSw[id] = val
		gs.pendingMu.Unlock()
	}
}

// GetVariable returns the value of a global variable.
func (gs *GameState) GetVariable(id int) int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.variables[id]
}

// SetVariable sets a global variable and queues it for persistence.
func (gs *GameState) SetVariable(id int, val int) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.variables[id] = val

	if gs.db != nil {
		gs.pendingMu.Lock()
		gs.pendingVar[id] = val
		gs.pendingMu.Unlock()
	}
}

// Snapshot copies the current switches and variables.
func (gs *GameState) Snapshot() (map[int]bool, map[int]int) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	sw := make(map[int]bool, len(gs.switches))
	for k, v := range gs.switches {
		sw[k] = v
	}
	vars := make(map[int]int, len(gs.variables))
	for k, v := range gs.variables {
		vars[k] = v
	}
	return sw, vars
}
