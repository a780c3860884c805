package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dokzlo13/softboxd/internal/animation"
	"github.com/dokzlo13/softboxd/internal/device"
	"github.com/dokzlo13/softboxd/internal/kv"
	"github.com/dokzlo13/softboxd/internal/netconfig"
)

type fakeNetwork struct {
	name      string
	found     bool
	joinErr   error
	createErr error
	connected bool
	resets    int
	joins     int
	creates   int
}

func (n *fakeNetwork) SetNetworkName(name string)     { n.name = name }
func (n *fakeNetwork) Init(ctx context.Context) error { return nil }
func (n *fakeNetwork) Scan(ctx context.Context, timeout time.Duration) (bool, error) {
	return n.found, nil
}
func (n *fakeNetwork) Join(ctx context.Context) error   { n.joins++; return n.joinErr }
func (n *fakeNetwork) Create(ctx context.Context) error { n.creates++; return n.createErr }
func (n *fakeNetwork) Connected() bool                  { return n.connected }
func (n *fakeNetwork) Reset() error                     { n.resets++; return nil }

type fakePortal struct {
	started, stopped int
	name             string
	readyAfter       int
	polls            int
}

func (p *fakePortal) Start(ctx context.Context) error { p.started++; return nil }
func (p *fakePortal) Stop(ctx context.Context) error  { p.stopped++; return nil }
func (p *fakePortal) Submitted() (string, bool) {
	p.polls++
	if p.name == "" || p.polls <= p.readyAfter {
		return "", false
	}
	return p.name, true
}

type fakeOutput struct {
	gate   bool
	deltas []device.Delta
}

func (o *fakeOutput) SetGate(open bool) { o.gate = open }
func (o *fakeOutput) ApplyDelta(d device.Delta, src device.Source) device.Result {
	o.deltas = append(o.deltas, d)
	return device.Result{StateChanged: true}
}

type harness struct {
	m      *Machine
	net    *fakeNetwork
	portal *fakePortal
	store  *netconfig.Store
	out    *fakeOutput
	clock  time.Time
	trans  []Transition
}

func newHarness(t *testing.T, configured bool) *harness {
	t.Helper()
	h := &harness{
		net:    &fakeNetwork{},
		portal: &fakePortal{},
		store:  netconfig.NewStore(kv.NewMemoryBucket(netconfig.BucketName())),
		out:    &fakeOutput{},
		clock:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if configured {
		if err := h.store.Save(netconfig.Config{NetworkName: "studio", IsConfigured: true, DeviceID: 4}); err != nil {
			t.Fatal(err)
		}
	}
	h.m = New(h.net, h.portal, h.store, h.out, DefaultTiming())
	h.m.now = func() time.Time { return h.clock }
	h.m.sleep = func(ctx context.Context, d time.Duration) error {
		h.clock = h.clock.Add(d)
		return ctx.Err()
	}
	h.m.OnTransition(func(tr Transition) { h.trans = append(h.trans, tr) })
	return h
}

func (h *harness) step(t *testing.T) State {
	t.Helper()
	if err := h.m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	return h.m.State()
}

func TestInitRoutesOnConfig(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		want       State
	}{
		{"configured", true, StateNetworkScan},
		{"unconfigured", false, StateConfigMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.configured)
			if got := h.step(t); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
			if tt.configured && h.net.name != "studio" {
				t.Errorf("network name = %q", h.net.name)
			}
		})
	}
}

func TestScanOutcome(t *testing.T) {
	tests := []struct {
		name  string
		found bool
		want  State
	}{
		{"found joins", true, StateMeshClient},
		{"not found creates", false, StateMeshMaster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, true)
			h.net.found = tt.found
			h.step(t)
			if got := h.step(t); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJoinFailureRecovers(t *testing.T) {
	h := newHarness(t, true)
	h.net.found = true
	h.net.joinErr = errors.New("no route")

	h.step(t) // init
	h.step(t) // scan
	if got := h.step(t); got != StateErrorRecovery {
		t.Fatalf("state = %s, want error_recovery", got)
	}
	if h.net.joins != 1 {
		t.Errorf("joins = %d", h.net.joins)
	}
}

func TestOperationalArmsDefaultOnce(t *testing.T) {
	h := newHarness(t, true)
	h.net.connected = true

	for i := 0; i < 3; i++ {
		h.step(t)
	}
	if h.m.State() != StateOperational {
		t.Fatalf("state = %s, want operational", h.m.State())
	}

	h.step(t)
	h.step(t)
	if !h.out.gate {
		t.Error("gate closed while operational")
	}
	if len(h.out.deltas) != 1 {
		t.Fatalf("default applied %d times, want 1", len(h.out.deltas))
	}
	d := h.out.deltas[0]
	if *d.Pattern != animation.Breathing || !*d.AutoMode || *d.Brightness != 128 || *d.R != 100 || *d.SpeedMs != 100 {
		t.Errorf("default delta = %+v", d)
	}
}

func TestConnectionLossClosesGate(t *testing.T) {
	h := newHarness(t, true)
	h.net.connected = true
	for i := 0; i < 4; i++ {
		h.step(t)
	}

	h.net.connected = false
	if got := h.step(t); got != StateConnectionLost {
		t.Fatalf("state = %s, want connection_lost", got)
	}
	if got := h.step(t); got != StateErrorRecovery {
		t.Fatalf("state = %s, want error_recovery", got)
	}
	if h.out.gate {
		t.Error("gate still open after connection loss")
	}
}

func TestRetryCeilingForcesReprovisioning(t *testing.T) {
	h := newHarness(t, true)

	recoveries := 0
	var after []State
	for i := 0; i < 40 && recoveries < 3; i++ {
		before := h.m.State()
		got := h.step(t)
		if before == StateErrorRecovery {
			recoveries++
			after = append(after, got)
		}
	}

	want := []State{StateNetworkScan, StateNetworkScan, StateConfigMode}
	if len(after) != len(want) {
		t.Fatalf("recoveries = %v", after)
	}
	for i := range want {
		if after[i] != want[i] {
			t.Errorf("recovery %d went to %s, want %s", i+1, after[i], want[i])
		}
	}

	cfg, err := h.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IsConfigured {
		t.Error("configured flag not cleared")
	}
	if h.m.Retries() != 0 {
		t.Errorf("retries = %d, want reset", h.m.Retries())
	}
	if h.net.resets != 3 {
		t.Errorf("network resets = %d, want 3", h.net.resets)
	}
}

func TestConfigModeAcceptsSubmission(t *testing.T) {
	h := newHarness(t, false)
	h.portal.name = "garage"
	h.portal.readyAfter = 2

	h.step(t)
	if got := h.step(t); got != StateNetworkScan {
		t.Fatalf("state = %s, want network_scan", got)
	}
	if h.portal.started != 1 || h.portal.stopped != 1 {
		t.Errorf("portal started %d stopped %d", h.portal.started, h.portal.stopped)
	}
	cfg, _ := h.store.Load()
	if !cfg.IsConfigured || cfg.NetworkName != "garage" {
		t.Errorf("stored = %+v", cfg)
	}
	if h.net.name != "garage" {
		t.Errorf("network name = %q", h.net.name)
	}
}

func TestConfigModeTimeout(t *testing.T) {
	h := newHarness(t, false)
	start := h.clock

	h.step(t)
	if got := h.step(t); got != StateErrorRecovery {
		t.Fatalf("state = %s, want error_recovery", got)
	}
	if h.portal.stopped != 1 {
		t.Error("portal not stopped on timeout")
	}
	if waited := h.clock.Sub(start); waited < DefaultTiming().ConfigTimeout {
		t.Errorf("gave up after %v", waited)
	}
}

func TestInvalidStateRecovers(t *testing.T) {
	h := newHarness(t, true)
	h.m.state = State(42)
	if got := h.step(t); got != StateErrorRecovery {
		t.Errorf("state = %s, want error_recovery", got)
	}
}

func TestTransitionsAreObserved(t *testing.T) {
	h := newHarness(t, true)
	h.step(t)
	h.step(t)
	if len(h.trans) != 2 {
		t.Fatalf("transitions = %d", len(h.trans))
	}
	if h.trans[0].From != StateInit || h.trans[0].To != StateNetworkScan || h.trans[1].To != StateMeshMaster {
		t.Errorf("transitions = %+v", h.trans)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, true)
	h.net.connected = true
	ctx, cancel := context.WithCancel(context.Background())

	steps := 0
	h.m.sleep = func(ctx context.Context, d time.Duration) error {
		steps++
		if steps > 10 {
			cancel()
		}
		return ctx.Err()
	}
	if err := h.m.Run(ctx); err != nil {
		t.Errorf("Run = %v", err)
	}
	if h.m.State() != StateOperational {
		t.Errorf("state = %s", h.m.State())
	}
}
