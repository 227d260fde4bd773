// Command battlesim runs one troop battle headlessly from a YAML scenario and
// prints the outcome.
//
//	battlesim <config.yaml> <scenario.yaml> [-events]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/kasuganosora/battleevent/config"
	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/game/troop"
	"github.com/kasuganosora/battleevent/logging"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	code, err := run(ctx, os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "battlesim:", err)
	}
	os.Exit(code)
}

type summary struct {
	BattleID string            `json:"battle_id"`
	Scenario string            `json:"scenario"`
	TroopID  int               `json:"troop_id"`
	Result   string            `json:"result"`
	Turns    int               `json:"turns"`
	Exp      int               `json:"exp"`
	Gold     int               `json:"gold"`
	Error    string            `json:"error,omitempty"`
	Events   []battle.Envelope `json:"events,omitempty"`
}

// run returns the process exit code: 0 for a finished battle, 1 for an
// interpreter error, 2 for bad input.
func run(ctx context.Context, args []string, out io.Writer) (int, error) {
	withEvents := false
	var paths []string
	for _, a := range args {
		if a == "-events" {
			withEvents = true
			continue
		}
		paths = append(paths, a)
	}
	if len(paths) != 2 {
		return 2, fmt.Errorf("usage: battlesim <config.yaml> <scenario.yaml> [-events]")
	}

	cfg, err := config.Load(paths[0])
	if err != nil {
		return 2, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return 2, err
	}
	defer func() { _ = logger.Sync() }()

	sc, err := resource.LoadScenario(paths[1])
	if err != nil {
		return 2, err
	}
	res := resource.NewLoader(cfg.RPGMaker.DataPath)
	if err := res.Load(); err != nil {
		return 2, err
	}

	events := &battle.EventLog{}
	opts := troop.SessionOptions{
		Res:               res,
		Sink:              events,
		Logger:            logger,
		RPG2k3:            cfg.Battle.RPG2k3(),
		MaxCallDepth:      cfg.Battle.MaxCallDepth,
		MaxTurns:          cfg.Battle.MaxTurns,
		MaxFramesPerEvent: cfg.Battle.MaxFramesPerEvent,
		CanEscape:         cfg.Battle.CanEscape,
	}
	if sc.Condition == "" {
		sc.Condition = cfg.Battle.Condition
	}
	if err := troop.ApplyScenario(&opts, sc); err != nil {
		return 2, err
	}
	session, err := troop.NewSession(opts)
	if err != nil {
		return 2, err
	}

	result, runErr := session.Run(ctx)
	s := summary{
		BattleID: session.ID,
		Scenario: sc.Name,
		TroopID:  sc.TroopID,
		Result:   battle.ResultName(result),
	}
	all := events.Events()
	if end := battle.EndOf(all); end != nil {
		s.Turns, s.Exp, s.Gold = end.Turns, end.Exp, end.Gold
	}
	if runErr != nil {
		s.Error = runErr.Error()
		logger.Error("battle aborted", zap.String("battle_id", session.ID), zap.Error(runErr))
	}
	if withEvents {
		s.Events = battle.WrapAll(all)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return 1, err
	}
	if runErr != nil {
		return 1, nil
	}
	return 0, nil
}
