package upstream

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/config"
	"github.com/duvholt/bifrost/internal/errs"
	"github.com/duvholt/bifrost/internal/graph"
)

// keepaliveInterval is how often a Live session expects to see any
// traffic before it considers the connection dead.
const keepaliveInterval = 30 * time.Second

// requestTimeout bounds how long a request/response exchange (inventory
// fetch, segment configure) waits for the gateway to answer before
// failing the caller rather than hanging forever.
const requestTimeout = 5 * time.Second

// Session is one gateway connection: its state machine, socket, outbound
// FIFO queue, and the inventory it has folded into the resource graph.
type Session struct {
	cfg   config.GatewayConfig
	store *graph.Store
	mgr   *Manager

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	queue *Queue

	// deviceHandles maps this gateway's IEEE addresses to the device
	// handle folded into the graph, so live state updates and inventory
	// diffs know what to mutate instead of re-deriving identity.
	deviceHandles map[string]graph.Handle
	lightHandles  map[string]graph.Handle

	pendingMu sync.Mutex
	pending   map[string]chan Envelope // by request envelope ID
}

// NewSession constructs a disconnected Session for one gateway config.
func NewSession(cfg config.GatewayConfig, store *graph.Store, mgr *Manager) *Session {
	return &Session{
		cfg:           cfg,
		store:         store,
		mgr:           mgr,
		state:         StateDisconnected,
		deviceHandles: make(map[string]graph.Handle),
		lightHandles:  make(map[string]graph.Handle),
		pending:       make(map[string]chan Envelope),
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	logGatewayState(s.cfg.ID, next)
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the connect/handshake/inventory/live/reconnect cycle until
// ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndServe(ctx); err != nil {
			log.Warn().Err(err).Str("gateway", s.cfg.ID).Msg("gateway session ended")
		}
		s.setState(StateReconnecting)

		delay := backoffDuration(attempt, time.Second, 60*time.Second, 2.0)
		attempt++
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) connectAndServe(ctx context.Context) error {
	s.setState(StateConnecting)

	normalized, err := NormalizeGatewayURL(s.cfg.URL)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout.Duration())
	defer cancel()
	conn, _, err := defaultDialer.DialContext(dialCtx, normalized, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.queue = NewQueue(s, s.cfg.CommandRateRPS)
	s.mu.Unlock()
	defer s.queue.Close()

	s.setState(StateHandshakeWait)
	s.setState(StateInventoryFetch)
	if err := s.fetchInventory(ctx); err != nil {
		return err
	}

	s.setState(StateLive)
	return s.readLoop(ctx)
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(keepaliveInterval)); err != nil {
			return err
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("gateway", s.cfg.ID).Msg("malformed gateway envelope, dropped")
			continue
		}
		s.handleEnvelope(ctx, env)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Session) handleEnvelope(ctx context.Context, env Envelope) {
	if env.ID != "" {
		s.pendingMu.Lock()
		ch, ok := s.pending[env.ID]
		s.pendingMu.Unlock()
		if ok {
			ch <- env
			return
		}
	}

	switch env.Type {
	case "state_change":
		var sc StateChange
		if err := json.Unmarshal(env.Payload, &sc); err != nil {
			return
		}
		s.applyStateChange(sc)
	case "device_list", "group_list":
		// unsolicited inventory refresh pushed by the gateway
		s.mu.Lock()
		live := s.state == StateLive
		s.mu.Unlock()
		if live {
			// runs outside the read loop: the refresh's responses are
			// delivered by this loop, so waiting for them here would stall it
			go func() {
				if err := s.fetchInventory(ctx); err != nil {
					log.Warn().Err(err).Str("gateway", s.cfg.ID).Msg("inventory refresh failed")
				}
			}()
		}
	}
}

// fetchInventory requests the device and group lists and applies one
// upsert per reported device, light and group. It does not compare
// against what the graph already holds: unchanged entries are applied
// again, and resources the gateway no longer reports are not deleted.
func (s *Session) fetchInventory(ctx context.Context) error {
	devices, groups, err := s.requestInventory(ctx)
	if err != nil {
		return err
	}

	muts := s.diffInventory(devices, groups)
	if len(muts) == 0 {
		return nil
	}
	return s.store.Apply(muts)
}

// requestInventory issues the gateway's device_list and group_list
// requests in turn and awaits each response, correlated by envelope ID.
func (s *Session) requestInventory(ctx context.Context) ([]InventoryDevice, []InventoryGroup, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	devices, err := s.requestDeviceList(ctx)
	if err != nil {
		return nil, nil, err
	}
	groups, err := s.requestGroupList(ctx)
	if err != nil {
		return nil, nil, err
	}
	return devices, groups, nil
}

func (s *Session) requestDeviceList(ctx context.Context) ([]InventoryDevice, error) {
	env, err := s.roundTrip(ctx, "inventory", "device_list_request", nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "device list request failed", err)
	}
	var resp struct {
		Devices []InventoryDevice `json:"devices"`
	}
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return nil, errs.Wrap(errs.KindMalformedFrame, "malformed device_list response", err)
	}
	return resp.Devices, nil
}

func (s *Session) requestGroupList(ctx context.Context) ([]InventoryGroup, error) {
	env, err := s.roundTrip(ctx, "inventory", "group_list_request", nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "group list request failed", err)
	}
	var resp struct {
		Groups []InventoryGroup `json:"groups"`
	}
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return nil, errs.Wrap(errs.KindMalformedFrame, "malformed group_list response", err)
	}
	return resp.Groups, nil
}

// configureSegments issues a command-7 segment-map request on the raw
// command path and awaits the gateway's status response.
// Manager.ConfigureSegments, which implements entertainment.Segmenter,
// routes multi-segment light configuration here through whichever
// session owns the light's gateway.
func (s *Session) configureSegments(ctx context.Context, gatewayAddr string, req *codec.SegmentConfigureRequest) (uint16, error) {
	raw := RawCommandPayload{
		Addr:       gatewayAddr,
		ClusterID:  clusterFC01,
		CommandID:  commandSegmentConfigure,
		HexPayload: hex.EncodeToString(req.Serialize()),
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return 0, err
	}

	env, err := s.roundTrip(ctx, "publish", "raw_command", body)
	if err != nil {
		return 0, errs.Wrap(errs.KindUnavailable, "segment configure request failed", err)
	}
	var resp struct {
		Status uint16 `json:"status"`
	}
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return 0, errs.Wrap(errs.KindMalformedFrame, "malformed raw_command response", err)
	}
	return resp.Status, nil
}

// roundTrip sends one correlated request envelope and blocks until its
// matching response arrives on handleEnvelope's correlation path, or ctx
// is done.
func (s *Session) roundTrip(ctx context.Context, topic, msgType string, payload json.RawMessage) (Envelope, error) {
	id := uuid.NewString()
	ch := make(chan Envelope, 1)

	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.sendEnvelope(ctx, Envelope{Topic: topic, Type: msgType, ID: id, Payload: payload}); err != nil {
		return Envelope{}, err
	}

	select {
	case env := <-ch:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (s *Session) diffInventory(devices []InventoryDevice, groups []InventoryGroup) []graph.Mutation {
	var muts []graph.Mutation

	for _, d := range devices {
		devHandle := graph.Handle{Kind: graph.KindDevice, ID: graph.NewID(graph.KindDevice, s.cfg.ID+":"+d.IEEEAddr)}
		lightHandle := graph.Handle{Kind: graph.KindLight, ID: graph.NewID(graph.KindLight, s.cfg.ID+":"+d.IEEEAddr+":light")}

		s.mu.Lock()
		s.deviceHandles[d.IEEEAddr] = devHandle
		s.lightHandles[d.IEEEAddr] = lightHandle
		s.mu.Unlock()
		s.mgr.bindLight(lightHandle, s.cfg.ID)

		dev := &graph.Device{
			Base:      graph.Base{H: devHandle},
			Metadata:  graph.Metadata{Name: d.FriendlyName},
			Services:  []graph.Handle{lightHandle},
			GatewayID: s.cfg.ID,
			Signature: d.IEEEAddr,
		}
		light := &graph.Light{
			Base:       graph.Base{H: lightHandle},
			Owner:      devHandle,
			Metadata:   graph.Metadata{Name: d.FriendlyName},
			Brightness: 100,
			GatewayID:  s.cfg.ID,
			GatewayRef: d.IEEEAddr,
		}

		if existing, ok := s.store.Get(lightHandle); ok {
			if l, ok := existing.(*graph.Light); ok {
				light.On = l.On
				light.Brightness = l.Brightness
				light.ColorXY = l.ColorXY
				light.ColorMirek = l.ColorMirek
			}
		}

		muts = append(muts,
			graph.Mutation{Kind: graph.ChangeAdded, Handle: devHandle, Resource: dev},
			graph.Mutation{Kind: graph.ChangeAdded, Handle: lightHandle, Resource: light},
		)
	}

	prefix := groupPrefix(s.cfg)
	for _, g := range groups {
		name := g.Name
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue // invisible to clients per the group prefix filter
			}
			name = strings.TrimPrefix(name, prefix)
		}

		var lights []graph.Handle
		s.mu.Lock()
		for _, member := range g.Members {
			if h, ok := s.lightHandles[member]; ok {
				lights = append(lights, h)
			}
		}
		s.mu.Unlock()

		groupHandle := graph.Handle{Kind: graph.KindGroup, ID: graph.NewID(graph.KindGroup, s.cfg.ID+":"+g.Name)}
		muts = append(muts, graph.Mutation{
			Kind:   graph.ChangeAdded,
			Handle: groupHandle,
			Resource: &graph.Group{
				Base:   graph.Base{H: groupHandle},
				Lights: lights,
			},
		})
	}

	return muts
}

func groupPrefix(cfg config.GatewayConfig) string {
	return cfg.Prefix
}

func (s *Session) applyStateChange(sc StateChange) {
	s.mu.Lock()
	lightHandle, ok := s.lightHandles[sc.IEEEAddr]
	s.mu.Unlock()
	if !ok {
		return
	}

	existing, ok := s.store.Get(lightHandle)
	if !ok {
		return
	}
	light, ok := existing.(*graph.Light)
	if !ok {
		return
	}

	var partial struct {
		State      *bool    `json:"state"`
		Brightness *float64 `json:"brightness"`
	}
	if err := json.Unmarshal(sc.State, &partial); err != nil {
		return
	}
	if partial.State != nil {
		light.On = *partial.State
	}
	if partial.Brightness != nil {
		light.Brightness = *partial.Brightness
	}

	if err := s.store.Apply([]graph.Mutation{{Kind: graph.ChangeUpdated, Handle: lightHandle, Resource: light}}); err != nil {
		log.Warn().Err(err).Str("gateway", s.cfg.ID).Msg("failed to apply upstream state change")
	}
}

// Send implements Sender against the live socket.
func (s *Session) Send(ctx context.Context, topic, msgType string, payload json.RawMessage) error {
	return s.sendEnvelope(ctx, Envelope{Topic: topic, Type: msgType, Payload: payload})
}

// sendEnvelope writes one envelope to the live socket, honoring ctx's
// deadline as the write deadline. Used both for fire-and-forget sends
// (Send) and as the write half of a correlated request/response exchange
// (roundTrip).
func (s *Session) sendEnvelope(ctx context.Context, env Envelope) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errs.New(errs.KindUnavailable, "gateway socket not connected")
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	return conn.WriteMessage(websocket.TextMessage, body)
}

// Submit fails fast with Unavailable if the session is not Live,
// otherwise enqueues the intent on the light's FIFO lane.
func (s *Session) Submit(ctx context.Context, lightAddr string, intent Intent) error {
	s.mu.Lock()
	state := s.state
	queue := s.queue
	s.mu.Unlock()

	if !state.IsAvailable() {
		return errs.New(errs.KindUnavailable, "gateway session is not live")
	}

	topic, msgType, payload, err := Translate(intent)
	if err != nil {
		return err
	}
	return queue.Submit(ctx, lightAddr, topic, msgType, payload)
}
