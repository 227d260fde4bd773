package battle

import (
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// Presenter implements the sound, animation and background services of a
// headless battle by turning each request into a BattleEvent.
type Presenter struct {
	Res    *resource.ResourceLoader
	Sink   EventSink
	Logger *zap.Logger

	background string
}

// NewPresenter creates a presenter. A nil logger is replaced by a no-op logger.
func NewPresenter(res *resource.ResourceLoader, sink EventSink, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Presenter{Res: res, Sink: sink, Logger: logger}
	if res != nil && res.System != nil {
		p.background = res.System.BattleBackground
	}
	return p
}

func (p *Presenter) emit(evt BattleEvent) {
	if p.Sink != nil {
		p.Sink.Emit(evt)
	}
}

// PlaySystemSE emits the configured system sound.
func (p *Presenter) PlaySystemSE(se SystemSE) {
	evt := &EventSound{SE: se.String()}
	if p.Res != nil && p.Res.System != nil {
		switch se {
		case SEEscape:
			evt.Name = p.Res.System.Sounds.Escape.Name
		case SEEnemyKill:
			evt.Name = p.Res.System.Sounds.EnemyKill.Name
		}
	}
	p.emit(evt)
}

// ShowBattleAnimation emits the animation and returns its length from the database.
// Unknown animations play for zero frames.
func (p *Presenter) ShowBattleAnimation(animationID int, targets []Battler) int {
	frames := 0
	if p.Res != nil {
		if anim := p.Res.AnimationByID(animationID); anim != nil {
			frames = anim.Frames
		} else {
			p.Logger.Warn("unknown battle animation", zap.Int("animation_id", animationID))
		}
	}
	p.emit(&EventAnimation{AnimationID: animationID, Targets: refs(targets), Frames: frames})
	return frames
}

// ChangeBackground records and emits the new background.
func (p *Presenter) ChangeBackground(name string) {
	p.background = name
	p.emit(&EventBackgroundChange{Name: name})
}

// Background is the current battle background.
func (p *Presenter) Background() string { return p.background }
