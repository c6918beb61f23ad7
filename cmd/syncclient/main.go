// Command syncclient joins a watch-together room from the terminal and
// prints what the room does.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/WatchParty/internal/client"
)

type printer struct{}

func (printer) OnPlaybackResync(e client.PlaybackResync) {
	ev := log.Info().Str("from", e.From.Name).Str("key", e.State.Key).Str("state", e.State.State)
	if e.State.Time != nil {
		ev = ev.Int64("time_ms", *e.State.Time)
	}
	ev.Msg("resync")
}
func (printer) OnPlaybackEnd(e client.PlaybackEnd)       { log.Info().Str("from", e.From.Name).Msg("end") }
func (printer) OnPlaybackPause(e client.PlaybackPause)   { log.Info().Str("from", e.From.Name).Msg("pause") }
func (printer) OnPlaybackResume(e client.PlaybackResume) { log.Info().Str("from", e.From.Name).Msg("resume") }
func (printer) OnPlaybackSeek(e client.PlaybackSeek) {
	log.Info().Str("from", e.From.Name).Int64("time_ms", e.Time).Msg("seek")
}
func (printer) OnToast(e client.Toast)               { log.Info().Msg(e.Text) }
func (printer) OnDisconnected(e client.Disconnected) { log.Warn().Str("reason", e.Reason).Msg("disconnected") }

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	flags := pflag.NewFlagSet("syncclient", pflag.ExitOnError)
	flags.String("server", "ws://localhost:8080/api/ws/sync", "sync socket URL")
	flags.String("token", "", "account token")
	flags.String("room", "", "room id to join; empty creates a room")
	flags.Duration("timeout", client.DefaultConnectTimeout, "connect timeout")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("WATCHPARTY")
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	agent := client.NewAgent(client.Config{
		URL:            v.GetString("server"),
		Token:          v.GetString("token"),
		ConnectTimeout: v.GetDuration("timeout"),
	})
	if err := agent.Connect(ctx, v.GetString("room")); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	log.Info().Str("room", string(agent.Room())).Bool("host", agent.IsHost()).Msg("joined")

	var h printer
	for {
		select {
		case <-ctx.Done():
			agent.Disconnect()
			return
		case ev := <-agent.Events():
			client.Dispatch(ev, h)
			if _, ok := ev.(client.Disconnected); ok {
				return
			}
		}
	}
}
