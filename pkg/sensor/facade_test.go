package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBus = errors.New("bus error")

func TestFacadeRead(t *testing.T) {
	f := NewFacade(
		NewFakeTemperature(1, FakeResult[float64]{Value: 24.49}),
		NewFakeVibration(1, FakeResult[[3]int]{Value: [3]int{10, -20, 30}}),
		nil,
	)
	f.Init()
	require.Equal(t, Reading{Temperature: 24.49, Vibration: [3]int{10, -20, 30}}, f.Read())
}

func TestFacadeReusesLastReadingOnError(t *testing.T) {
	var failures []string
	f := NewFacade(
		NewFakeTemperature(1,
			FakeResult[float64]{Value: 30},
			FakeResult[float64]{Err: errBus},
		),
		NewFakeVibration(1,
			FakeResult[[3]int]{Value: [3]int{1, 2, 3}},
			FakeResult[[3]int]{Value: [3]int{4, 5, 6}},
		),
		nil,
		WithErrorHook(func(sensor string, err error) { failures = append(failures, sensor) }),
	)

	require.Equal(t, Reading{Temperature: 30, Vibration: [3]int{1, 2, 3}}, f.Read())
	require.Equal(t, Reading{Temperature: 30, Vibration: [3]int{4, 5, 6}}, f.Read())
	require.Equal(t, []string{"temperature"}, failures)
}

func TestFacadeBreakerSkipsWedgedSensor(t *testing.T) {
	script := make([]FakeResult[[3]int], 0, 4)
	script = append(script, FakeResult[[3]int]{Value: [3]int{7, 8, 9}})
	for i := 0; i < 3; i++ {
		script = append(script, FakeResult[[3]int]{Err: errBus})
	}
	vib := NewFakeVibration(1, script...)
	var skipped int
	f := NewFacade(
		NewFakeTemperature(1),
		vib,
		nil,
		WithBreaker(2, time.Hour),
		WithErrorHook(func(sensor string, err error) {
			if sensor == "vibration" {
				skipped++
			}
		}),
	)

	require.Equal(t, [3]int{7, 8, 9}, f.Read().Vibration)
	for i := 0; i < 4; i++ {
		require.Equal(t, [3]int{7, 8, 9}, f.Read().Vibration)
	}
	require.Equal(t, 4, skipped)
	// two failures tripped the breaker, the third scripted error was never read
	require.Len(t, vib.script, 1)
}
