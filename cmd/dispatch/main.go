// Command dispatch places outbound calls through the telephony platform.
//
//	dispatch <phone-or-json> [room-name]
//	dispatch --list-rooms
//
// The metadata argument is either a bare phone number or a JSON object
// with optional keys phone_number|phone, first_name, city, address.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/outdial-ai/outdial/internal/dotenv"
	"github.com/outdial-ai/outdial/pkg/outbound"
	"github.com/outdial-ai/outdial/pkg/telephony"
)

type options struct {
	ListRooms bool `long:"list-rooms" description:"List active rooms and participant connection status"`

	Args struct {
		Metadata string `positional-arg-name:"phone-or-json" description:"Phone number or JSON call metadata"`
		Room     string `positional-arg-name:"room-name" description:"Optional room name (generated when omitted)"`
	} `positional-args:"yes"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := dotenv.Load(); err != nil {
		logger.Error("load env files", "error", err)
		os.Exit(1)
	}

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "<phone-or-json> [room-name] | --list-rooms"
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		logger.Error("parse arguments", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("dispatch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	cfg, err := outbound.LoadFromEnv()
	if err != nil {
		return err
	}

	client := telephony.NewClient(cfg.URL, cfg.APIKey, cfg.APISecret)
	dispatcher := outbound.NewDispatcher(client, cfg, logger)

	if opts.ListRooms {
		return listRooms(ctx, dispatcher)
	}

	if opts.Args.Metadata == "" {
		return outbound.NewDispatchError("a phone number or JSON metadata argument is required", nil)
	}

	result, err := dispatcher.Dispatch(ctx, opts.Args.Metadata, opts.Args.Room)
	if err != nil {
		return err
	}

	fmt.Printf("Call dispatched\n")
	fmt.Printf("  phone:       %s\n", result.Call.PhoneNumber)
	fmt.Printf("  room:        %s (sid %s)\n", result.Room.Name, result.Room.SID)
	fmt.Printf("  participant: %s\n", result.Participant.Identity)
	if result.AgentJoined {
		fmt.Printf("  agent:       connected\n")
	} else {
		fmt.Printf("  agent:       not yet connected (may take a moment)\n")
	}
	return nil
}

func listRooms(ctx context.Context, dispatcher *outbound.Dispatcher) error {
	statuses, err := dispatcher.ListActiveRooms(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Active rooms: %d\n", len(statuses))
	for _, status := range statuses {
		fmt.Printf("\nroom %s\n", status.Room.Name)
		if status.Room.Metadata != "" {
			fmt.Printf("  metadata: %s\n", status.Room.Metadata)
		}
		fmt.Printf("  participants: %d\n", len(status.Participants))
		for _, p := range status.Participants {
			state := "disconnected"
			if p.State == telephony.ParticipantActive {
				state = "connected"
			}
			fmt.Printf("    - %s (%s)\n", p.Identity, state)
		}
	}
	return nil
}
