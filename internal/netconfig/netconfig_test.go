package netconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/dokzlo13/softboxd/internal/kv"
)

func TestLoadCreatesDefaults(t *testing.T) {
	b := kv.NewMemoryBucket(BucketName())
	s := NewStore(b)

	c, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.IsConfigured || c.NetworkName != "" {
		t.Errorf("defaults = %+v", c)
	}
	if c.DeviceID == 0 || c.DeviceID == 255 {
		t.Errorf("device id = %d", c.DeviceID)
	}

	again, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if again.DeviceID != c.DeviceID {
		t.Error("defaults were not persisted")
	}
}

func TestSaveLoadUnconfigure(t *testing.T) {
	s := NewStore(kv.NewMemoryBucket(BucketName()))
	want := Config{NetworkName: "studio", IsConfigured: true, DeviceID: 12}
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got != want || !got.Valid() {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}

	if err := s.Unconfigure(); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Load()
	if got.IsConfigured || got.NetworkName != "studio" || got.DeviceID != 12 {
		t.Errorf("after Unconfigure = %+v", got)
	}
}

func TestReservedDeviceIDIsReplacedOnce(t *testing.T) {
	for _, id := range []uint8{0, 255} {
		b := kv.NewMemoryBucket(BucketName())
		if err := b.Save("network", Config{NetworkName: "studio", IsConfigured: true, DeviceID: id}); err != nil {
			t.Fatal(err)
		}
		s := NewStore(b)

		first, err := s.Load()
		if err != nil {
			t.Fatal(err)
		}
		if first.DeviceID == 0 || first.DeviceID == 255 {
			t.Fatalf("device id = %d", first.DeviceID)
		}
		for i := 0; i < 5; i++ {
			c, err := s.Load()
			if err != nil {
				t.Fatal(err)
			}
			if c.DeviceID != first.DeviceID {
				t.Fatalf("load %d: device id = %d, want %d", i, c.DeviceID, first.DeviceID)
			}
		}
		if err := s.Unconfigure(); err != nil {
			t.Fatal(err)
		}
		if c, _ := s.Load(); c.DeviceID != first.DeviceID || c.NetworkName != "studio" {
			t.Errorf("after Unconfigure = %+v", c)
		}
	}
}

func TestEmptyNameIsUnconfigured(t *testing.T) {
	b := kv.NewMemoryBucket(BucketName())
	if err := b.Save("network", Config{IsConfigured: true, DeviceID: 3}); err != nil {
		t.Fatal(err)
	}
	c, err := NewStore(b).Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.IsConfigured || c.Valid() {
		t.Errorf("config with empty name reported configured: %+v", c)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		want error
	}{
		{"studio", nil},
		{"", ErrEmptyName},
		{"   ", ErrEmptyName},
		{strings.Repeat("n", MaxNameLength), nil},
		{strings.Repeat("n", MaxNameLength+1), ErrNameTooLong},
		{"studio\xc3", ErrNameEncoding},
		{"café", nil},
	}
	for _, tt := range tests {
		if err := ValidateName(tt.name); !errors.Is(err, tt.want) {
			t.Errorf("ValidateName(%q) = %v, want %v", tt.name, err, tt.want)
		}
	}
}
