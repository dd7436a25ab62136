// Command agent is the worker that answers outbound call rooms. It polls
// for rooms the dispatcher created that have no agent yet, joins them,
// and runs one conversation session per call.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	"github.com/outdial-ai/outdial/internal/dotenv"
	"github.com/outdial-ai/outdial/pkg/outbound"
	"github.com/outdial-ai/outdial/pkg/outbound/gemini"
	"github.com/outdial-ai/outdial/pkg/telephony"
)

const (
	calleeIdentityPrefix = "sip-user-"
	calleeJoinTimeout    = 3 * time.Minute
	lookupLatency        = 3 * time.Second
)

type options struct {
	Room         string        `long:"room" description:"Handle a single room and exit instead of polling"`
	PollInterval time.Duration `long:"poll-interval" default:"2s" description:"How often to scan for unanswered rooms"`
	Model        string        `long:"model" description:"Classifier model name"`
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

	if err := run(ctx, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("agent worker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	cfg, err := outbound.LoadFromEnv()
	if err != nil {
		return err
	}

	// Shared read-only handles, built once and passed to every session.
	client := telephony.NewClient(cfg.URL, cfg.APIKey, cfg.APISecret)
	classifier, err := gemini.New(ctx,
		strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		opts.Model,
		outbound.CallToolDefinitions(),
		logger)
	if err != nil {
		return err
	}

	worker := &worker{
		cfg:        cfg,
		client:     client,
		classifier: classifier,
		logger:     logger,
		handled:    make(map[string]bool),
	}

	if opts.Room != "" {
		err := worker.runSession(ctx, opts.Room)
		worker.deleteRoom(ctx, opts.Room)
		return err
	}

	logger.Info("agent worker started",
		"room_prefix", cfg.RoomPrefix,
		"poll_interval", opts.PollInterval.String())
	return worker.poll(ctx, opts.PollInterval)
}

type worker struct {
	cfg        outbound.Config
	client     *telephony.Client
	classifier outbound.Classifier
	logger     *slog.Logger

	mu sync.Mutex
	// handled maps a room name to whether its session has finished. A
	// finished room stays claimed until it drops out of the room list, so
	// the worker never re-joins a call it already completed.
	handled map[string]bool
	wg      sync.WaitGroup
}

// poll scans for dispatcher-created rooms that still need an agent and
// spawns one session per room.
func (w *worker) poll(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}

		rooms, err := w.client.ListRooms(ctx)
		if err != nil {
			w.logger.Warn("list rooms", "error", err)
			continue
		}

		active := make(map[string]struct{}, len(rooms))
		for _, room := range rooms {
			if !strings.HasPrefix(room.Name, w.cfg.RoomPrefix) {
				continue
			}
			active[room.Name] = struct{}{}
			if !w.claim(room.Name) {
				continue
			}
			w.wg.Add(1)
			go func(name string) {
				defer w.wg.Done()
				defer w.finish(name)
				if err := w.runSession(ctx, name); err != nil && !errors.Is(err, context.Canceled) {
					w.logger.Error("session failed", "room", name, "error", err)
				}
				w.deleteRoom(ctx, name)
			}(room.Name)
		}
		w.prune(active)
	}
}

func (w *worker) claim(room string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handled[room]; ok {
		return false
	}
	w.handled[room] = false
	return true
}

// finish keeps the room claimed but marks its session done. The claim is
// dropped by prune once the room is gone from the platform, so a still
// listed room is never picked up a second time.
func (w *worker) finish(room string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handled[room] = true
}

// prune forgets finished rooms that no longer appear in the room list.
func (w *worker) prune(active map[string]struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for room, done := range w.handled {
		if _, listed := active[room]; done && !listed {
			delete(w.handled, room)
		}
	}
}

// deleteRoom tears the room down after a session so a completed call
// does not linger in the room list. Runs on its own timeout so worker
// shutdown cannot leave the room behind half-closed.
func (w *worker) deleteRoom(ctx context.Context, room string) {
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.client.DeleteRoom(deleteCtx, room); err != nil && !telephony.IsNotFound(err) {
		w.logger.Warn("delete room after session", "room", room, "error", err)
	}
}

// runSession joins one room and drives the call to completion.
func (w *worker) runSession(ctx context.Context, roomName string) error {
	identity := w.cfg.AgentIdentityPrefix + "-" + uuid.NewString()
	logger := w.logger.With("room", roomName, "identity", identity)
	logger.Info("connecting to room")

	conn, err := w.client.ConnectRoom(ctx, roomName, identity)
	if err != nil {
		return fmt.Errorf("connect room: %w", err)
	}

	calleeIdentity, err := w.waitForCallee(ctx, conn, roomName)
	if err != nil {
		_ = conn.Close()
		if outbound.IsKind(err, outbound.ErrCallNotAnswered) {
			// No pickup: shut down cleanly, no script runs.
			logger.Info("call was not answered", "error", err)
			return nil
		}
		return err
	}
	logger.Info("callee connected", "callee", calleeIdentity)

	roomMeta := w.roomMetadata(ctx, roomName)
	call := outbound.ParseMetadata(roomMeta).WithRealtorDefault(w.cfg.DefaultRealtorName)

	hangup := outbound.NewRoomHangup(w.client, roomName, calleeIdentity, logger)
	tools, err := outbound.NewToolSet(hangup, lookupLatency, logger)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("build tool set: %w", err)
	}

	controller := outbound.NewController(call, w.cfg.Tunables, tools, logger)
	roomIO := outbound.NewRoomIO(conn, calleeIdentity)
	session := outbound.NewSession(controller, w.classifier, roomIO, roomIO, hangup, w.cfg.Tunables, logger)
	session.AddCloser(roomIO)

	return session.Run(ctx)
}

// waitForCallee blocks until the dialed SIP participant is in the room.
func (w *worker) waitForCallee(ctx context.Context, conn *telephony.RoomConn, roomName string) (string, error) {
	participants, err := w.client.ListParticipants(ctx, roomName)
	if err == nil {
		for _, p := range participants {
			if strings.HasPrefix(p.Identity, calleeIdentityPrefix) && p.State != telephony.ParticipantDisconnected {
				return p.Identity, nil
			}
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, calleeJoinTimeout)
	defer cancel()
	for {
		event, err := conn.ReadEvent(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", outbound.NewCallNotAnsweredError(roomName, err)
			}
			return "", fmt.Errorf("wait for callee: %w", err)
		}
		if event.Type == telephony.EventParticipantJoined &&
			event.Participant != nil &&
			strings.HasPrefix(event.Participant.Identity, calleeIdentityPrefix) {
			return event.Participant.Identity, nil
		}
	}
}

func (w *worker) roomMetadata(ctx context.Context, roomName string) string {
	rooms, err := w.client.ListRooms(ctx)
	if err != nil {
		w.logger.Warn("fetch room metadata", "room", roomName, "error", err)
		return ""
	}
	for _, room := range rooms {
		if room.Name == roomName {
			return room.Metadata
		}
	}
	return ""
}
