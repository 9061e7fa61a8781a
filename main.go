// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/usedbytes/goldfish-bot/base"
	"github.com/usedbytes/goldfish-bot/clock"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/interface/input"
	"github.com/usedbytes/goldfish-bot/model"
	"github.com/usedbytes/goldfish-bot/plan"
	"github.com/usedbytes/goldfish-bot/plan/escape"
	"github.com/usedbytes/goldfish-bot/plan/magnet"
	"github.com/usedbytes/goldfish-bot/plan/mouth"
	"github.com/usedbytes/goldfish-bot/plan/toggle"
	"github.com/usedbytes/goldfish-bot/plan/turn"
)

// addTasks adds the behaviours in priority order: edge first, then the
// magnets in sensor order.
func addTasks(planner *plan.Planner, pl plan.Platform, state *model.RunState, clk clock.Clock, cfg config.Config, rng *rand.Rand) error {
	turner := turn.NewTurner(pl, clk, cfg.Drive.RotationSpeed, cfg.Turn.Rate)

	err := planner.AddTask(escape.TaskName, escape.NewTask(pl, state, clk, turner, cfg, rng))
	if err != nil {
		return err
	}

	for i := 0; i < magnet.NumSensors; i++ {
		task, err := magnet.NewTask(i, pl, state, clk, turner, cfg)
		if err != nil {
			return err
		}

		if err := planner.AddTask(magnet.Name(i), task); err != nil {
			return err
		}
	}

	return nil
}

func run(cfg config.Config, verbose bool) error {
	platform, err := base.NewPlatform(cfg)
	if err != nil {
		return err
	}
	defer platform.Close()

	var sw toggle.Switch = platform.Switch()
	if cfg.Toggle.Source == "gamepad" {
		sw = input.NewRemote(platform.AddLed)
	} else {
		// Light bar for status only
		input.NewRemote(platform.AddLed)
	}

	clk := clock.Real()
	state := model.NewRunState()

	machine, err := toggle.NewMachine(state, sw, platform, clk, cfg)
	if err != nil {
		return err
	}

	// Park everything before the first tick
	if err := plan.FullStop(platform, cfg.Mouth.ClosedAngle, model.StatusStopped); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	planner := plan.NewPlanner(state, machine, cfg.Loop.Period.Duration)
	planner.Verbose = verbose

	if err := addTasks(planner, platform, state, clk, cfg, rng); err != nil {
		return err
	}

	mouthTask := mouth.NewTask(platform, state, clk, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Either task failing takes the other down
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		errs[0] = planner.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		errs[1] = mouthTask.Run(ctx)
	}()

	log.Println("Running. Tasks:", planner.Tasks())
	wg.Wait()
	log.Println("Shutting down")

	err = errors.Join(errs...)
	if serr := machine.Shutdown(); serr != nil {
		log.Println("Stop failed:", serr)
	}
	if herr := platform.Halt(); herr != nil {
		log.Println("Halt failed:", herr)
	}

	return err
}

func main() {
	app := cli.NewApp()
	app.Name = "goldfish-bot"
	app.Usage = "run the goldfish sweeper"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name: "config",
			Usage: "TOML calibration file (defaults are used if not given)",
		},
		cli.BoolFlag{
			Name: "verbose",
			Usage: "log every task the control loop runs",
		},
	}
	app.Action = func(c *cli.Context) error {
		log.Println("Goldfish Bot")

		cfg, err := config.Load(c.GlobalString("config"))
		if err != nil {
			return err
		}

		if err := run(cfg, c.GlobalBool("verbose")); err != nil {
			return cli.NewExitError(fmt.Sprintf("goldfish-bot: %v", err), 1)
		}

		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
