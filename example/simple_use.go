package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/leandrodaf/midiex/internal/logger"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"github.com/leandrodaf/midiex/sdk/midi"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func main() {
	log := logger.NewZapLogger()

	client, err := midi.NewMIDIClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithClientName("MIDIex example"),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		return
	}
	defer client.Stop()

	ports, err := client.ListPorts()
	if err != nil {
		log.Error("Failed to list MIDI ports", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI ports:")
	for _, p := range ports {
		fmt.Println(" ", p)
	}

	eventChannel := make(chan contracts.Message, 100)
	go func() {
		for event := range eventChannel {
			log.Info("MIDI message",
				log.Field().String("port", event.Port.Name),
				log.Field().Uint64("timestamp", event.Timestamp),
				log.Field().String("message", gomidi.Message(event.Data).String()),
			)
		}
	}()
	client.StartCapture(eventChannel)

	for _, p := range ports {
		if p.Direction != contracts.Input {
			continue
		}
		if err := client.Subscribe(p); err != nil {
			log.Warn("Failed to subscribe", log.Field().String("port", p.Name), log.Field().Error("error", err))
		}
	}

	// Publish a virtual input and output where the platform allows it. The
	// OS does not connect them; patch them to other software (or to each
	// other) with a tool such as aconnect or Audio MIDI Setup.
	if vin, err := client.CreateVirtualInput("MIDIex In"); err == nil {
		if err := client.SubscribeVirtual(vin); err != nil {
			log.Warn("Failed to subscribe virtual input", log.Field().Error("error", err))
		}
	}
	if out, err := client.CreateVirtualOutput("MIDIex Out"); err == nil {
		defer client.CloseOutput(out)
		if _, err := client.Send(out, gomidi.NoteOn(0, 60, 100)); err != nil {
			log.Warn("Failed to send", log.Field().Error("error", err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events, err := client.Notifications(ctx)
	if err != nil {
		log.Warn("Device notifications unavailable", log.Field().Error("error", err))
		fmt.Println("Capturing MIDI messages... Press Ctrl+C to exit.")
		<-ctx.Done()
		return
	}

	fmt.Println("Capturing MIDI messages and device changes... Press Ctrl+C to exit.")
	for n := range events {
		log.Info("MIDI device change",
			log.Field().String("type", n.Type.String()),
			log.Field().String("name", n.Name),
			log.Field().String("parent", n.ParentName),
			log.Field().String("direction", n.Direction.String()),
		)
	}
}
