package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// RecordCalibration disables torque on the arm at port and samples its
// positions until d has passed or ctx is done, while the joints are moved by
// hand through their full range. Motor i of AllMotors is servo ID i+1.
func RecordCalibration(ctx context.Context, port string, d time.Duration) (Calibration, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	motors := AllMotors()
	ids := make([]int, len(motors))
	for i := range motors {
		ids[i] = i + 1
	}
	group := feetech.NewServoGroupByIDs(bus, ids...)
	if err := group.DisableAll(ctx); err != nil {
		return nil, fmt.Errorf("disable torque: %w", err)
	}

	rec := newRangeRecorder(ids)
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		positions, err := group.Positions(ctx)
		if err == nil {
			rec.observe(positions)
		} else if ctx.Err() == nil {
			return nil, fmt.Errorf("read positions: %w", err)
		}
		select {
		case <-ctx.Done():
			return rec.calibration(motors)
		case <-ticker.C:
		}
	}
}

// rangeRecorder tracks the raw min/max seen per servo ID.
type rangeRecorder struct {
	ids []int
	min map[int]int
	max map[int]int
}

func newRangeRecorder(ids []int) *rangeRecorder {
	return &rangeRecorder{ids: ids, min: map[int]int{}, max: map[int]int{}}
}

func (r *rangeRecorder) observe(positions map[int]int) {
	for id, pos := range positions {
		if lo, ok := r.min[id]; !ok || pos < lo {
			r.min[id] = pos
		}
		if hi, ok := r.max[id]; !ok || pos > hi {
			r.max[id] = pos
		}
	}
}

// calibration maps ids to motors in order. Every servo must have been seen
// moving.
func (r *rangeRecorder) calibration(motors []MotorName) (Calibration, error) {
	cal := make(Calibration, len(motors))
	for i, name := range motors {
		id := r.ids[i]
		lo, ok := r.min[id]
		if !ok {
			return nil, fmt.Errorf("%s (id %d): no position read", name, id)
		}
		hi := r.max[id]
		if hi == lo {
			return nil, fmt.Errorf("%s (id %d): joint was not moved", name, id)
		}
		cal[name] = MotorCalibration{ID: id, RangeMin: lo, RangeMax: hi}
	}
	return cal, nil
}
