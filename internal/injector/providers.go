package injector

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"github.com/zeusync/savestate/internal/config"
	"github.com/zeusync/savestate/internal/core/events/bus"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/internal/core/replay"
	"github.com/zeusync/savestate/internal/core/rewind"
	"github.com/zeusync/savestate/internal/core/savestate"
	"github.com/zeusync/savestate/internal/core/sim"
	"github.com/zeusync/savestate/internal/core/slots"
)

// App is everything the demo binary drives.
type App struct {
	Config    config.Config
	Logger    *log.Logger
	Events    bus.EventBus
	World     *sim.World
	Engine    *savestate.Engine
	Rewind    *rewind.Controller[sim.Input]
	Slots     *slots.Manager
	Persister *slots.Persister
	Recorder  *replay.Recorder[sim.Input]
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideEventBus,
	ProvideRegistry,
	ProvideWorld,
	ProvideEngine,
	ProvideStack,
	ProvideController,
	ProvideStore,
	ProvideManager,
	ProvidePersister,
	ProvideRecorder,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) (*log.Logger, func()) {
	logger := log.NewWithOptions(cfg.Log.LogOptions())
	return logger, func() { _ = logger.Sync() }
}

func ProvideEventBus() bus.EventBus { return bus.New() }

func ProvideRegistry() (*savestate.Registry, error) { return sim.NewRegistry() }

func ProvideWorld(cfg config.Config) *sim.World {
	return sim.NewWorld(sim.Config{
		TickRate:     cfg.Sim.TickRate,
		Seed:         cfg.Sim.Seed,
		WaveInterval: cfg.Sim.WaveInterval,
		ArenaSize:    cfg.Sim.ArenaSize,
	})
}

func ProvideEngine(reg *savestate.Registry, world *sim.World, events bus.EventBus, logger *log.Logger) *savestate.Engine {
	return savestate.NewEngine(reg, world, events, logger)
}

// ProvideStack builds the rewind history and makes it drop its frames when a
// slot load or replay restores the world behind its back.
func ProvideStack(engine *savestate.Engine, events bus.EventBus, cfg config.Config, logger *log.Logger) (*rewind.Stack, func(), error) {
	stack := rewind.NewStack(engine, rewind.Options{
		MaxFrames: cfg.Rewind.MaxFrames,
		MaxAge:    cfg.Rewind.MaxAge,
		KeepClock: cfg.Rewind.KeepClock,
	}, logger)
	if err := stack.Follow(events); err != nil {
		return nil, nil, err
	}
	return stack, func() { _ = stack.Close() }, nil
}

func ProvideController(world *sim.World, stack *rewind.Stack, logger *log.Logger) *rewind.Controller[sim.Input] {
	return rewind.NewController[sim.Input](world, stack, logger)
}

// ProvideStore opens the configured slot backend.
func ProvideStore(cfg config.Config, logger *log.Logger) (slots.Store, func(), error) {
	level, err := cfg.Slots.EncoderLevel()
	if err != nil {
		return nil, nil, err
	}
	codec := slots.Codec{Level: level}

	switch cfg.Slots.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Slots.Redis.Addr,
			Password: cfg.Slots.Redis.Password,
			DB:       cfg.Slots.Redis.DB,
		})
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", log.Error(err))
			}
		}
		return slots.NewRedisStore(client, cfg.Slots.Redis.Prefix, codec), cleanup, nil
	case config.BackendFile:
		store, err := slots.NewFileStore(cfg.Slots.Dir, codec)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: slots.backend %q", config.ErrInvalid, cfg.Slots.Backend)
	}
}

func ProvideManager(store slots.Store, engine *savestate.Engine, cfg config.Config, logger *log.Logger) *slots.Manager {
	return slots.NewManager(store, engine, slots.ManagerOptions{
		Version:    cfg.Slots.Version,
		ShiftClock: cfg.Slots.ShiftClock,
	}, logger)
}

func ProvidePersister(ctx context.Context, store slots.Store, cfg config.Config, logger *log.Logger) *slots.Persister {
	return slots.NewPersister(ctx, store, cfg.Slots.Workers, logger)
}

func ProvideRecorder(engine *savestate.Engine, world *sim.World, events bus.EventBus, logger *log.Logger) (*replay.Recorder[sim.Input], func(), error) {
	rec, err := replay.NewRecorder[sim.Input](engine, world, events, logger)
	if err != nil {
		return nil, nil, err
	}
	return rec, func() { _ = rec.Close() }, nil
}
