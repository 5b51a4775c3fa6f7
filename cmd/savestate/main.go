package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/savestate/internal/config"
	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/internal/core/savestate"
	"github.com/zeusync/savestate/internal/core/sim"
	"github.com/zeusync/savestate/internal/core/systems/physics"
	"github.com/zeusync/savestate/internal/injector"
)

const autosaveEvery = 120

func main() {
	path := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := injector.InitializeApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building app:", err)
		os.Exit(1)
	}
	err = run(ctx, app)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// script is the demo's input sequence: walk a square, fire, pick things up.
func script(tick uint64) sim.Input {
	dirs := [...]physics.Vec2{physics.V(1, 0), physics.V(0, 1), physics.V(-1, 0), physics.V(0, -1)}
	return sim.Input{
		Move:   dirs[(tick/60)%uint64(len(dirs))],
		Fire:   tick%3 == 0,
		Pickup: true,
	}
}

func run(ctx context.Context, app *injector.App) error {
	logger := app.Logger
	world := app.World
	ctrl := app.Rewind
	demo := app.Config.Demo

	autosave := chunk.New(0)
	for i := 0; i < demo.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := ctrl.Tick(script(world.Tick())); err != nil {
			return err
		}
		if world.Tick()%autosaveEvery == 0 {
			if _, err := app.Engine.Capture(autosave, savestate.All()); err != nil {
				return err
			}
			name := fmt.Sprintf("auto-%d", world.Tick()/autosaveEvery%3)
			app.Persister.Save(app.Slots.Stamp(name, world.Tick()), autosave)
		}
	}
	logger.Info("simulation ran",
		log.Uint64("tick", world.Tick()),
		log.Int("entities", world.Len()),
		log.Int64("score", world.Score),
		log.Int("rewind_frames", ctrl.Stack().Len()),
	)

	if err := ctrl.Freeze(); err != nil {
		return err
	}
	for i := 0; i < demo.StepBack; i++ {
		if err := ctrl.StepBack(); err != nil {
			logger.Warn("stopped stepping back", log.Error(err))
			break
		}
	}
	logger.Info("rewound while frozen", log.Uint64("tick", world.Tick()), log.Int("entities", world.Len()))
	if err := ctrl.StepForward(script(world.Tick())); err != nil {
		return err
	}
	ctrl.Unfreeze()

	saved, err := app.Slots.Save(ctx, demo.Slot, world.Tick())
	if err != nil {
		return err
	}
	for i := 0; i < autosaveEvery; i++ {
		if _, err := ctrl.Tick(script(world.Tick())); err != nil {
			return err
		}
	}
	_, reload, err := app.Slots.Load(ctx, demo.Slot)
	if err != nil {
		return err
	}
	logger.Info("slot reloaded",
		log.String("slot", saved.Name),
		log.Uint64("tick", world.Tick()),
		log.Int("spawned", reload.Spawned),
		log.Int("destroyed", reload.Destroyed),
	)

	if demo.VerifyRun {
		if err := app.Recorder.Begin(); err != nil {
			return err
		}
		for i := 0; i < demo.Ticks; i++ {
			if _, err := app.Recorder.Step(script(world.Tick())); err != nil {
				return err
			}
		}
		report, err := app.Recorder.Verify()
		if err != nil {
			return err
		}
		logger.Info("replay verified",
			log.Uint64("from", report.StartTick),
			log.Uint64("to", report.EndTick),
		)
	}

	if err := app.Persister.Wait(); err != nil {
		return err
	}
	headers, err := app.Slots.List(ctx)
	if err != nil {
		return err
	}
	for _, h := range headers {
		logger.Info("slot", log.String("name", h.Name), log.Uint64("tick", h.Tick), log.Int("bytes", h.Size))
	}
	return nil
}
