// Command ludosim plays headless all-bot matches through the same table logic
// the server runs and reports how the seats fared.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"ludo/internal/app"
	"ludo/internal/bot"
	"ludo/internal/dice"
	"ludo/internal/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type gameResult struct {
	winnerSeat int
	ticks      int64
	turns      int64
	captures   int
	sixes      int
	rolls      int
}

func main() {
	players := flag.Int("players", 4, "Number of bot seats (2-4)")
	games := flag.Int("games", 100, "Number of matches to play")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for dice and bot delays")
	level := flag.String("level", string(bot.LevelTactical), "Bot level: basic or tactical")
	maxTicks := flag.Int64("max-ticks", 100000, "Give up on a match after this many ticks")
	jsonLogs := flag.Bool("json", false, "Log JSON instead of console output")
	verbose := flag.Bool("v", false, "Log every match")
	flag.Parse()

	if !*jsonLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *players < domain.MinPlayers || *players > domain.MaxPlayers {
		log.Fatal().Int("players", *players).Msg("player count out of range")
	}
	if _, err := bot.ParseLevel(*level); err != nil {
		log.Fatal().Err(err).Msg("bad bot level")
	}

	rng := rand.New(rand.NewSource(*seed))
	svc := app.NewService(dice.NewGenerator(rand.New(rand.NewSource(rng.Int63()))))
	sched := app.NewScheduler()

	log.Info().Int("players", *players).Int("games", *games).Int64("seed", *seed).Str("level", *level).Msg("starting simulation")

	wins := make([]int, *players)
	var totalTurns, totalTicks int64
	var captures, sixes, rolls, unfinished int
	for i := 0; i < *games; i++ {
		res, err := playGame(svc, sched, rng, fmt.Sprintf("sim-%d", i), *players, *level, *maxTicks)
		if err != nil {
			unfinished++
			log.Warn().Err(err).Int("game", i+1).Msg("match did not finish")
			continue
		}
		wins[res.winnerSeat]++
		totalTurns += res.turns
		totalTicks += res.ticks
		captures += res.captures
		sixes += res.sixes
		rolls += res.rolls
		log.Debug().Int("game", i+1).Int("winner_seat", res.winnerSeat).Int64("turns", res.turns).Int("captures", res.captures).Msg("match finished")
	}

	finished := *games - unfinished
	if finished == 0 {
		log.Fatal().Msg("no match finished")
	}
	colors := domain.SeatColors(*players)
	for seat, n := range wins {
		log.Info().
			Int("seat", seat).
			Str("color", colors[seat].String()).
			Int("wins", n).
			Float64("win_rate", float64(n)/float64(finished)).
			Msg("seat result")
	}
	log.Info().
		Int("finished", finished).
		Int("unfinished", unfinished).
		Float64("avg_turns", float64(totalTurns)/float64(finished)).
		Float64("avg_ticks", float64(totalTicks)/float64(finished)).
		Float64("avg_captures", float64(captures)/float64(finished)).
		Float64("six_rate", float64(sixes)/float64(max(rolls, 1))).
		Msg("simulation complete")
}

// playGame seats bots only, so every step is driven by the scheduler.
func playGame(svc *app.Service, sched *app.Scheduler, rng *rand.Rand, matchID string, players int, level string, maxTicks int64) (gameResult, error) {
	seats := make([]app.Seat, players)
	for i := range seats {
		seats[i] = app.Seat{UserID: fmt.Sprintf("%s-bot-%d", matchID, i), DisplayName: fmt.Sprintf("Bot %d", i+1), IsBot: true}
	}

	game := svc.OpenMatch(app.MatchSpec{ID: matchID, OwnerID: seats[0].UserID, Tier: "simulation", BotLevel: level})
	table := app.NewTable(svc, sched, app.TableConfig{PassTicks: 1, BotMinTicks: 1, BotMaxTicks: 1}, rand.New(rand.NewSource(rng.Int63())), game)
	defer sched.Cancel(matchID)

	events, err := table.Start(seats, 0)
	if err != nil {
		return gameResult{}, err
	}

	res := gameResult{winnerSeat: -1}
	for tick := int64(1); ; tick++ {
		for _, ev := range events {
			switch ev.Kind {
			case app.EventDiceRolled:
				res.rolls++
				if ev.Payload.(app.DiceRolledPayload).Value == domain.ExtraTurnRoll {
					res.sixes++
				}
			case app.EventTokenCaptured:
				res.captures++
			case app.EventGameEnded:
				res.winnerSeat = ev.Payload.(app.GameEndedPayload).WinnerSeat
			}
		}
		if table.Game().Over() {
			res.ticks = tick
			res.turns = table.Game().TurnSeq
			break
		}
		if tick > maxTicks {
			return res, fmt.Errorf("match %s still running after %d ticks", matchID, maxTicks)
		}
		events, err = table.Advance(tick)
		if err != nil {
			return res, err
		}
	}
	if res.winnerSeat < 0 {
		return res, fmt.Errorf("match %s ended without a winner", matchID)
	}
	return res, nil
}
