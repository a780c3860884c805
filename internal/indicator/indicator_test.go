package indicator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/softboxd/internal/lifecycle"
)

func TestPatternFor(t *testing.T) {
	tests := []struct {
		state lifecycle.State
		want  Pattern
	}{
		{lifecycle.StateInit, PatternFastBlink},
		{lifecycle.StateErrorRecovery, PatternFastBlink},
		{lifecycle.StateConfigMode, PatternAlternating},
		{lifecycle.StateNetworkScan, PatternSlowBlink},
		{lifecycle.StateMeshClient, PatternSlowBlink},
		{lifecycle.StateMeshMaster, PatternSlowBlink},
		{lifecycle.StateConnectionLost, PatternSlowBlink},
		{lifecycle.StateOperational, PatternSolid},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := PatternFor(tt.state); got != tt.want {
				t.Errorf("PatternFor(%s) = %s, want %s", tt.state, got, tt.want)
			}
		})
	}
}

func TestLevelAt(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		elapsed time.Duration
		want    Level
	}{
		{"fast on", PatternFastBlink, 50 * time.Millisecond, Level{Red: true}},
		{"fast off", PatternFastBlink, 150 * time.Millisecond, Level{}},
		{"alternating red", PatternAlternating, 100 * time.Millisecond, Level{Red: true}},
		{"alternating green", PatternAlternating, 600 * time.Millisecond, Level{Green: true}},
		{"slow on", PatternSlowBlink, 900 * time.Millisecond, Level{Green: true}},
		{"slow off", PatternSlowBlink, 1100 * time.Millisecond, Level{}},
		{"solid", PatternSolid, time.Hour, Level{Green: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelAt(tt.pattern, tt.elapsed); got != tt.want {
				t.Errorf("LevelAt = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type recordOutput struct {
	mu     sync.Mutex
	levels []Level
}

func (r *recordOutput) Set(l Level) error {
	r.mu.Lock()
	r.levels = append(r.levels, l)
	r.mu.Unlock()
	return nil
}

func TestRunWritesAndBlanksOnStop(t *testing.T) {
	out := &recordOutput{}
	ind := New(func() lifecycle.State { return lifecycle.StateOperational }, out, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := ind.Run(ctx); err != nil {
		t.Fatal(err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.levels) != 2 {
		t.Fatalf("levels = %+v, want solid then blank", out.levels)
	}
	if out.levels[0] != (Level{Green: true}) || out.levels[1] != (Level{}) {
		t.Errorf("levels = %+v", out.levels)
	}
}
