package mesh

import (
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/softboxd/internal/device"
)

// Device is the part of the device controller the relay drives.
type Device interface {
	ApplyDelta(d device.Delta, src device.Source) device.Result
	Snapshot() device.Snapshot
	SetMesh(id device.MeshIdentity)
}

// Sender delivers a frame to every peer. Delivery is best effort.
type Sender interface {
	Send(frame []byte) error
}

// Relay encodes local state for peers and applies peer commands locally. A master
// relay also re-broadcasts every set command it receives.
type Relay struct {
	id  uint8
	dev Device

	mu      sync.RWMutex
	tx      Sender
	master  bool
	limiter *rate.Limiter
}

// NewRelay creates a relay for the node id. Master re-broadcasts are limited to
// relayRate per second.
func NewRelay(id uint8, dev Device, relayRate float64, burst int) *Relay {
	if burst < 1 {
		burst = 1
	}
	return &Relay{
		id:      id,
		dev:     dev,
		limiter: rate.NewLimiter(rate.Limit(relayRate), burst),
	}
}

// ID returns the node id stamped on outgoing frames.
func (r *Relay) ID() uint8 {
	return r.id
}

// Attach connects the relay to a transport.
func (r *Relay) Attach(tx Sender, master bool) {
	r.mu.Lock()
	r.tx = tx
	r.master = master
	r.mu.Unlock()

	r.dev.SetMesh(device.MeshIdentity{Provisioned: true, Address: uint16(r.id)})
	log.Info().Uint8("id", r.id).Bool("master", master).Msg("Mesh relay attached")
}

// Detach disconnects the relay. Broadcasts fail with ErrNotConnected until the next
// Attach.
func (r *Relay) Detach() {
	r.mu.Lock()
	r.tx = nil
	r.master = false
	r.mu.Unlock()
}

// Master reports whether this node re-broadcasts peer commands.
func (r *Relay) Master() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.master
}

// Broadcast sends st to every peer as a set command.
func (r *Relay) Broadcast(st device.State) error {
	return r.send(Encode(CommandFromState(OpSet, r.id, st)))
}

// RequestStatus asks every peer for its state.
func (r *Relay) RequestStatus() error {
	return r.send(Encode(Command{Op: OpGet, Sender: r.id}))
}

func (r *Relay) send(frame []byte) error {
	r.mu.RLock()
	tx := r.tx
	r.mu.RUnlock()

	if tx == nil {
		return ErrNotConnected
	}
	return tx.Send(frame)
}

// HandleFrame processes one received frame. Malformed frames are dropped.
func (r *Relay) HandleFrame(frame []byte) {
	cmd, err := Decode(frame)
	if err != nil {
		log.Warn().Err(err).Int("len", len(frame)).Msg("Dropped mesh frame")
		return
	}
	if cmd.Sender == r.id {
		return
	}

	switch cmd.Op {
	case OpSet:
		res := r.dev.ApplyDelta(cmd.Delta(), device.SourceMesh)
		log.Debug().
			Uint8("sender", cmd.Sender).
			Bool("applied", res.Applied()).
			Msg("Mesh set received")
		if r.Master() {
			r.rebroadcast(frame)
		}

	case OpGet:
		reply := Encode(CommandFromState(OpStatus, r.id, r.dev.Snapshot().State))
		if err := r.send(reply); err != nil {
			log.Warn().Err(err).Msg("Failed to send mesh status")
		}

	case OpStatus:
		log.Debug().
			Uint8("sender", cmd.Sender).
			Bool("power", cmd.Power).
			Uint8("brightness", cmd.Brightness).
			Str("color", cmd.Color.String()).
			Msg("Mesh peer status")
	}
}

// rebroadcast floods a peer's frame once, subject to the relay limiter. Frames are
// not deduplicated and carry no TTL.
func (r *Relay) rebroadcast(frame []byte) {
	if !r.limiter.Allow() {
		log.Warn().Msg("Mesh relay rate limited, frame not re-broadcast")
		return
	}
	if err := r.send(frame); err != nil {
		log.Warn().Err(err).Msg("Failed to re-broadcast mesh frame")
	}
}
