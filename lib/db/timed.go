package db

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimedResult pairs a result with the time the backend needed to produce it.
type TimedResult[T any] struct {
	Result   T        `json:"result"`
	Duration Duration `json:"duration"`
}

// Timed wraps result and duration in a TimedResult.
func Timed[T any](result T, d time.Duration) TimedResult[T] {
	return TimedResult[T]{Result: result, Duration: Duration(d)}
}

// Add accumulates the duration of a further sub-operation.
func (r *TimedResult[T]) Add(d time.Duration) {
	r.Duration += Duration(d)
}

// Elapsed returns the measured duration.
func (r TimedResult[T]) Elapsed() time.Duration {
	return time.Duration(r.Duration)
}

func (r TimedResult[T]) String() string {
	switch v := any(r.Result).(type) {
	case string:
		return fmt.Sprintf("%s\n(took %s)", v, r.Elapsed())
	case fmt.Stringer:
		return fmt.Sprintf("%s\n(took %s)", v.String(), r.Elapsed())
	}
	b, err := json.MarshalIndent(r.Result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v\n(took %s)", r.Result, r.Elapsed())
	}
	return fmt.Sprintf("%s\n(took %s)", b, r.Elapsed())
}

// --------------------------------------------------------------------------
// Measuring
// --------------------------------------------------------------------------

// Measure runs fn and returns its wall-clock duration.
func Measure(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

// --------------------------------------------------------------------------
// Duration
// --------------------------------------------------------------------------

// Duration is a time.Duration that is encoded as {"secs": .., "nanos": ..},
// the envelope format the query front end expects.
type Duration time.Duration

type durationJSON struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

func (d Duration) MarshalJSON() ([]byte, error) {
	ns := time.Duration(d).Nanoseconds()
	if ns < 0 {
		ns = 0
	}
	return json.Marshal(durationJSON{
		Secs:  uint64(ns / int64(time.Second)),
		Nanos: uint32(ns % int64(time.Second)),
	})
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v durationJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = Duration(time.Duration(v.Secs)*time.Second + time.Duration(v.Nanos))
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
