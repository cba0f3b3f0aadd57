package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dttson/drifting-car/internal/config"
	"github.com/dttson/drifting-car/internal/shared/logger"
	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/simulation"
	"github.com/dttson/drifting-car/internal/store"
	"github.com/dttson/drifting-car/internal/telemetry"
	"github.com/dttson/drifting-car/internal/wire"
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

type server struct {
	log      logger.Logger
	settings config.Settings
	codec    wire.Codec
	store    *store.Store
	metrics  *telemetry.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	world   *simulation.World
	clients map[string]*client
}

func main() {
	settings, err := config.Load(getEnv("DRIFT_CONFIG_DIR", "."))
	if err != nil {
		boot := logger.New("raceserver")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logger.NewWithOptions("raceserver", logger.Options{
		Level:  settings.Log.Level,
		Pretty: settings.Log.Pretty,
	})

	codec, err := wire.New(settings.Server.Encoding)
	if err != nil {
		log.Fatal().Err(err).Msg("wire encoding")
	}
	metrics, err := telemetry.New()
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}
	st, err := store.Open(settings.Storage.SQLitePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("results store")
	}
	defer func() { _ = st.Close() }()

	s := &server{
		log:      log,
		settings: settings,
		codec:    codec,
		store:    st,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*client),
	}
	if _, err := s.newRace(); err != nil {
		log.Fatal().Err(err).Msg("world")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.runSimulationLoop(ctx)
	go s.runReplicationLoop(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)

	httpServer := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", settings.Server.Addr).
		Str("encoding", codec.Name()).
		Int("frame_rate", settings.Server.FrameRate).
		Msg("race server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// newRace swaps in a fresh world in the Ready state. A race that has not
// finished yet is dropped without results.
func (s *server) newRace() (*simulation.World, error) {
	w, err := simulation.NewWorld(simulation.Options{
		RaceID:   uuid.NewString(),
		Settings: s.settings,
		Log:      s.log,
		Metrics:  s.metrics,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.world
	s.world = w
	s.mu.Unlock()

	if prev != nil {
		s.log.Info().Str("race", prev.RaceID()).Str("phase", prev.Phase()).Msg("race replaced")
	}
	return w, nil
}

func (s *server) currentWorld() *simulation.World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	world := s.currentWorld()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"race":   world.RaceID(),
		"phase":  world.Phase(),
	})
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 64)}
	s.register(c)
	s.log.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("client connected")

	state := s.currentWorld().Snapshot()
	s.sendTo(c, types.ServerEnvelope{
		Type:     "welcome",
		Tick:     state.Tick,
		State:    &state,
		ServerMS: time.Now().UTC().UnixMilli(),
		Message:  s.codec.Name(),
	})

	go s.writePump(c)
	s.readPump(c)
}

func (s *server) readPump(c *client) {
	defer func() {
		s.unregister(c.id)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info().Str("client", c.id).Msg("client disconnected")
				return
			}
			s.log.Warn().Err(err).Str("client", c.id).Msg("read error")
			return
		}

		var in types.ClientEnvelope
		if err := s.codec.Decode(mt, msg, &in); err != nil {
			s.sendError(c, "bad_payload")
			continue
		}

		switch in.Type {
		case "start":
			if err := s.currentWorld().Start(); err != nil {
				s.sendError(c, "not_ready")
			}
		case "restart":
			if _, err := s.newRace(); err != nil {
				s.log.Error().Err(err).Msg("restart failed")
				s.sendError(c, "restart_failed")
			}
		case "input":
			if in.Input == nil {
				s.sendError(c, "missing_input")
				continue
			}
			s.currentWorld().ApplyInput(*in.Input)
		case "ping":
			s.sendTo(c, types.ServerEnvelope{
				Type:     "pong",
				ServerMS: time.Now().UTC().UnixMilli(),
				AckSeq:   s.currentWorld().LastInputSeq(),
			})
		default:
			s.sendError(c, "unsupported_message_type")
		}
	}
}

func (s *server) writePump(c *client) {
	ticker := time.NewTicker(20 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(s.codec.MessageType(), msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		}
	}
}

func (s *server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		close(c.send)
		delete(s.clients, id)
	}
}

func (s *server) sendTo(c *client, env types.ServerEnvelope) {
	payload, err := s.codec.Encode(env)
	if err != nil {
		s.log.Error().Err(err).Str("type", env.Type).Msg("encode failed")
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (s *server) sendError(c *client, message string) {
	s.sendTo(c, types.ServerEnvelope{Type: "error", Message: message})
}

func (s *server) broadcast(env types.ServerEnvelope) {
	payload, err := s.codec.Encode(env)
	if err != nil {
		s.log.Error().Err(err).Str("type", env.Type).Msg("encode failed")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

func (s *server) runSimulationLoop(ctx context.Context) {
	rate := max(s.settings.Server.FrameRate, 1)
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	dt := 1.0 / float64(rate)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		w := s.currentWorld()
		w.Tick(dt)
		if results, ok := w.TakeResults(); ok {
			s.finishRace(ctx, w.RaceID(), results)
		}
	}
}

func (s *server) finishRace(ctx context.Context, raceID string, results []types.CarResult) {
	s.broadcast(types.ServerEnvelope{
		Type:     "results",
		Results:  results,
		ServerMS: time.Now().UTC().UnixMilli(),
	})

	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.store.SaveRace(saveCtx, raceID, time.Now().UTC(), results); err != nil {
		s.log.Error().Err(err).Str("race", raceID).Msg("save results failed")
		return
	}
	s.log.Info().Str("race", raceID).Int("results", len(results)).Msg("results saved")
}

func (s *server) runReplicationLoop(ctx context.Context) {
	rate := max(s.settings.Server.ReplicationRate, 1)
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		w := s.currentWorld()
		state := w.Flush()
		s.broadcast(types.ServerEnvelope{
			Type:     "state",
			Tick:     state.Tick,
			State:    &state,
			ServerMS: time.Now().UTC().UnixMilli(),
			AckSeq:   w.LastInputSeq(),
		})
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
