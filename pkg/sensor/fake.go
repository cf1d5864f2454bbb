package sensor

import (
	"math/rand"
	"sync"
)

// FakeTemperature replays scripted values, then keeps returning random
// room-temperature readings. Script entries with Err set fail that read.
type FakeTemperature struct {
	mu     sync.Mutex
	script []FakeResult[float64]
	rng    *rand.Rand
}

// FakeVibration replays scripted values, then returns small random jitter
// around a 1 g reading on Z.
type FakeVibration struct {
	mu     sync.Mutex
	script []FakeResult[[3]int]
	rng    *rand.Rand
}

// FakeResult is one scripted read.
type FakeResult[T any] struct {
	Value T
	Err   error
}

func NewFakeTemperature(seed int64, script ...FakeResult[float64]) *FakeTemperature {
	return &FakeTemperature{script: script, rng: rand.New(rand.NewSource(seed))}
}

func NewFakeVibration(seed int64, script ...FakeResult[[3]int]) *FakeVibration {
	return &FakeVibration{script: script, rng: rand.New(rand.NewSource(seed))}
}

func (f *FakeTemperature) Init() error { return nil }

func (f *FakeTemperature) ReadTemperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) > 0 {
		r := f.script[0]
		f.script = f.script[1:]
		return r.Value, r.Err
	}
	return 22 + f.rng.Float64()*6, nil
}

func (f *FakeTemperature) Close() error { return nil }

func (f *FakeVibration) Init() error { return nil }

func (f *FakeVibration) ReadVibration() ([3]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) > 0 {
		r := f.script[0]
		f.script = f.script[1:]
		return r.Value, r.Err
	}
	return [3]int{f.rng.Intn(41) - 20, f.rng.Intn(41) - 20, 250 + f.rng.Intn(21) - 10}, nil
}

func (f *FakeVibration) Close() error { return nil }
