// Package battlelog persists finished battles asynchronously in batches.
package battlelog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned by Get for an unknown battle id.
var ErrNotFound = errors.New("battlelog: battle not found")

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Entry holds one finished battle to be logged.
type Entry struct {
	ID        string
	TraceID   string
	TroopID   int
	TroopName string
	Scenario  string
	Engine    string
	Party     []int
	Result    int
	Events    []battle.BattleEvent
	Err       error
	Duration  time.Duration
}

// Service writes battle logs asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.BattleLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.BattleLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record converts an Entry into its row form. Turns, exp and gold come from
// the battle_end event when one was emitted.
func Record(entry Entry) *model.BattleLog {
	partyJSON, _ := json.Marshal(entry.Party)
	eventsJSON, err := json.Marshal(battle.WrapAll(entry.Events))
	if err != nil {
		eventsJSON = []byte("[]")
	}
	rec := &model.BattleLog{
		ID:         entry.ID,
		TraceID:    entry.TraceID,
		TroopID:    entry.TroopID,
		TroopName:  entry.TroopName,
		Scenario:   entry.Scenario,
		Engine:     entry.Engine,
		Party:      datatypes.JSON(partyJSON),
		Result:     entry.Result,
		ResultName: battle.ResultName(entry.Result),
		Events:     datatypes.JSON(eventsJSON),
		DurationMs: int(entry.Duration.Milliseconds()),
	}
	if entry.Err != nil {
		rec.Error = entry.Err.Error()
	}
	if end := battle.EndOf(entry.Events); end != nil {
		rec.Turns, rec.Exp, rec.Gold = end.Turns, end.Exp, end.Gold
	}
	return rec
}

// Log enqueues a battle for async DB write. It never blocks; a full queue drops the entry.
func (svc *Service) Log(entry Entry) {
	record := Record(entry)
	select {
	case <-svc.stopCh:
		svc.logger.Warn("battle log service stopped, dropping entry", zap.String("battle_id", entry.ID))
		return
	default:
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("battle log channel full, dropping entry",
			zap.String("battle_id", entry.ID),
			zap.Int("troop_id", entry.TroopID))
	}
}

// Get loads a persisted battle log.
func (svc *Service) Get(ctx context.Context, id string) (*model.BattleLog, error) {
	var rec model.BattleLog
	err := svc.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Prune deletes battle logs created before cutoff and returns how many were removed.
func (svc *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := svc.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.BattleLog{})
	return res.RowsAffected, res.Error
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.BattleLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("battle log batch write failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
