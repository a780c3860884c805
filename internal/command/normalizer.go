package command

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/device"
)

// meshEffectSpeed is the speed used for effect broadcasts that do not name one.
const meshEffectSpeed = 1000

// Device is the part of the device controller the normalizer drives.
type Device interface {
	ApplyDelta(d device.Delta, src device.Source) device.Result
	Snapshot() device.Snapshot
}

// Broadcaster forwards a state to mesh peers.
type Broadcaster interface {
	Broadcast(st device.State) error
}

// Normalizer applies decoded control payloads to the device.
type Normalizer struct {
	dev  Device
	mesh Broadcaster
}

// NewNormalizer creates a normalizer. mesh may be nil when no relay is running.
func NewNormalizer(dev Device, mesh Broadcaster) *Normalizer {
	return &Normalizer{dev: dev, mesh: mesh}
}

// HandleControl decodes a control-characteristic write and applies it as one delta.
// It returns the number of accepted bytes.
func (n *Normalizer) HandleControl(payload []byte) (int, device.Result, error) {
	f, err := Decode(payload)
	if err != nil {
		log.Warn().Err(err).Int("len", len(payload)).Msg("Rejected control payload")
		return 0, device.Result{}, err
	}
	res := n.dev.ApplyDelta(f.Delta(), device.SourceControl)
	return len(payload), res, nil
}

// HandleMesh decodes a mesh-control write. Fields present in the payload override
// the current state; the merged state is applied locally and broadcast to peers.
// A payload naming an effect starts that effect in animated mode on every node.
func (n *Normalizer) HandleMesh(payload []byte) (int, device.Result, error) {
	f, err := Decode(payload)
	if err != nil {
		log.Warn().Err(err).Int("len", len(payload)).Msg("Rejected mesh control payload")
		return 0, device.Result{}, err
	}
	if f.Empty() {
		return len(payload), device.Result{Snapshot: n.dev.Snapshot()}, nil
	}

	d := f.Delta()
	if f.Effect != nil {
		auto := true
		d.AutoMode = &auto
		if d.SpeedMs == nil {
			speed := uint32(meshEffectSpeed)
			d.SpeedMs = &speed
		}
	}

	res := n.dev.ApplyDelta(d, device.SourceControl)
	if n.mesh != nil {
		if err := n.mesh.Broadcast(res.Snapshot.State); err != nil {
			log.Warn().Err(err).Msg("Failed to broadcast mesh command")
		}
	}
	return len(payload), res, nil
}
