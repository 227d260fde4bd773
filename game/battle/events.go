package battle

import "sync"

// BattleEvent is emitted during a battle for logging, the debug API and pub/sub.
type BattleEvent interface {
	EventType() string
}

// EventSink receives battle events in emission order.
type EventSink interface {
	Emit(evt BattleEvent)
}

// BattlerRef identifies a battler in event payloads.
type BattlerRef struct {
	Index   int    `json:"index"`
	IsActor bool   `json:"is_actor"`
	Name    string `json:"name"`
}

// BattlerSnapshot is a full snapshot of a battler's state.
type BattlerSnapshot struct {
	Index   int    `json:"index"`
	IsActor bool   `json:"is_actor"`
	Name    string `json:"name"`
	HP      int    `json:"hp"`
	MaxHP   int    `json:"max_hp"`
	SP      int    `json:"sp"`
	MaxSP   int    `json:"max_sp"`
	States  []int  `json:"states"`
	Hidden  bool   `json:"hidden,omitempty"`
	EnemyID int    `json:"enemy_id,omitempty"`
	ActorID int    `json:"actor_id,omitempty"`
}

func SnapshotBattler(b Battler) BattlerSnapshot {
	s := BattlerSnapshot{
		Index:   b.Index(),
		IsActor: b.IsActor(),
		Name:    b.Name(),
		HP:      b.HP(),
		MaxHP:   b.MaxHP(),
		SP:      b.SP(),
		MaxSP:   b.MaxSP(),
		States:  b.StateIDs(),
	}
	if eb, ok := b.(*EnemyBattler); ok {
		s.EnemyID = eb.EnemyID()
		s.Hidden = eb.IsHidden()
	}
	if ab, ok := b.(*ActorBattler); ok {
		s.ActorID = ab.ActorID()
	}
	return s
}

func RefBattler(b Battler) BattlerRef {
	return BattlerRef{Index: b.Index(), IsActor: b.IsActor(), Name: b.Name()}
}

func refs(bs []Battler) []BattlerRef {
	out := make([]BattlerRef, len(bs))
	for i, b := range bs {
		out[i] = RefBattler(b)
	}
	return out
}

// --- Concrete event types ---

type EventBattleStart struct {
	TroopID   int               `json:"troop_id"`
	Condition string            `json:"condition"`
	Actors    []BattlerSnapshot `json:"actors"`
	Enemies   []BattlerSnapshot `json:"enemies"`
}

func (EventBattleStart) EventType() string { return "battle_start" }

type EventTurnStart struct {
	TurnCount int          `json:"turn_count"`
	Order     []BattlerRef `json:"order"`
}

func (EventTurnStart) EventType() string { return "turn_start" }

type ActionResultTarget struct {
	Target  BattlerRef `json:"target"`
	Damage  int        `json:"damage"`
	HPAfter int        `json:"hp_after"`
	Killed  bool       `json:"killed,omitempty"`
}

type EventActionResult struct {
	Subject    BattlerRef           `json:"subject"`
	ActionType int                  `json:"action_type"`
	CommandID  int                  `json:"command_id,omitempty"`
	Repeat     int                  `json:"repeat,omitempty"`
	Targets    []ActionResultTarget `json:"targets"`
}

func (EventActionResult) EventType() string { return "action_result" }

type EventPageStarted struct {
	PageID int `json:"page_id"`
	Turn   int `json:"turn"`
}

func (EventPageStarted) EventType() string { return "page_started" }

type EventSound struct {
	SE   string `json:"se"`
	Name string `json:"name,omitempty"`
}

func (EventSound) EventType() string { return "sound" }

type EventAnimation struct {
	AnimationID int          `json:"animation_id"`
	Targets     []BattlerRef `json:"targets"`
	Frames      int          `json:"frames"`
}

func (EventAnimation) EventType() string { return "animation" }

type EventBackgroundChange struct {
	Name string `json:"name"`
}

func (EventBackgroundChange) EventType() string { return "background_change" }

// EventEnemyShown is emitted when a hidden troop member appears.
type EventEnemyShown struct {
	Enemy BattlerRef `json:"enemy"`
}

func (EventEnemyShown) EventType() string { return "enemy_shown" }

type EventBattleEnd struct {
	Result int    `json:"result"`
	Name   string `json:"name"`
	Turns  int    `json:"turns"`
	Exp    int    `json:"exp"`
	Gold   int    `json:"gold"`
}

func (EventBattleEnd) EventType() string { return "battle_end" }

// EndOf returns the last battle_end event in evts, or nil.
func EndOf(evts []BattleEvent) *EventBattleEnd {
	for i := len(evts) - 1; i >= 0; i-- {
		switch e := evts[i].(type) {
		case *EventBattleEnd:
			return e
		case EventBattleEnd:
			return &e
		}
	}
	return nil
}

// Envelope is the wire form of an event: its type tag plus the payload.
type Envelope struct {
	Type string      `json:"type"`
	Data BattleEvent `json:"data"`
}

// Wrap tags evt with its type.
func Wrap(evt BattleEvent) Envelope { return Envelope{Type: evt.EventType(), Data: evt} }

// WrapAll tags every event in order.
func WrapAll(evts []BattleEvent) []Envelope {
	out := make([]Envelope, len(evts))
	for i, e := range evts {
		out[i] = Wrap(e)
	}
	return out
}

// --- Sinks ---

// EventLog records every event it receives. Safe for concurrent use.
type EventLog struct {
	mu     sync.Mutex
	events []BattleEvent
}

func (l *EventLog) Emit(evt BattleEvent) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []BattleEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]BattleEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Types returns the event types in order.
func (l *EventLog) Types() []string {
	evts := l.Events()
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.EventType()
	}
	return out
}

// MultiSink fans every event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Emit(evt BattleEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(evt)
		}
	}
}

// ChannelSink forwards events to a buffered channel, dropping them when it is full.
type ChannelSink struct {
	C       chan BattleEvent
	dropped func(evt BattleEvent)
}

// NewChannelSink creates a sink with the given buffer. onDrop may be nil.
func NewChannelSink(buffer int, onDrop func(evt BattleEvent)) *ChannelSink {
	return &ChannelSink{C: make(chan BattleEvent, buffer), dropped: onDrop}
}

func (s *ChannelSink) Emit(evt BattleEvent) {
	select {
	case s.C <- evt:
	default:
		if s.dropped != nil {
			s.dropped(evt)
		}
	}
}
