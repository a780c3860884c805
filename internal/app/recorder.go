package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/device"
	"github.com/dokzlo13/softboxd/internal/eventbus"
	"github.com/dokzlo13/softboxd/internal/ledger"
	"github.com/dokzlo13/softboxd/internal/lifecycle"
)

// recorder appends bus events to the ledger.
type recorder struct {
	ledger *ledger.Ledger
}

func newRecorder(l *ledger.Ledger) *recorder {
	return &recorder{ledger: l}
}

func (r *recorder) append(eventType ledger.EventType, e eventbus.Event, payload map[string]any) {
	if err := r.ledger.Append(eventType, e.ID, e.Source, payload); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to append ledger entry")
	}
}

func (r *recorder) stateCommitted(e eventbus.Event) {
	st, ok := e.Payload.(device.State)
	if !ok {
		return
	}
	r.append(ledger.EventStateCommitted, e, map[string]any{
		"power":      st.Power,
		"brightness": st.Brightness,
		"color":      st.Color.String(),
		"auto_mode":  st.AutoMode,
		"effect":     st.Pattern.String(),
		"speed":      st.SpeedMs,
	})
}

func (r *recorder) lifecycleTransition(e eventbus.Event) {
	tr, ok := e.Payload.(lifecycle.Transition)
	if !ok {
		return
	}
	r.append(ledger.EventLifecycleTransition, e, map[string]any{
		"from":    tr.From.String(),
		"to":      tr.To.String(),
		"retries": tr.Retries,
	})
}

func (r *recorder) buttonPressed(e eventbus.Event) {
	r.append(ledger.EventButtonPressed, e, nil)
}
