// Package idgen hands out process-unique correlation ids for packets
// flowing through the gateway. Same layout as a Twitter snowflake:
// 41 bits of millisecond timestamp, 5 bits datacenter, 5 bits worker,
// 12 bits sequence.
package idgen

import (
	"errors"
	"sync"
	"time"
)

const (
	workerIDBits     int64 = 5
	datacenterIDBits int64 = 5
	sequenceBits     int64 = 12

	maxWorkerID     int64 = -1 ^ (-1 << uint64(workerIDBits))
	maxDatacenterID int64 = -1 ^ (-1 << uint64(datacenterIDBits))
	maxSequence     int64 = -1 ^ (-1 << uint64(sequenceBits))

	workShift uint8 = 12
	dataShift uint8 = 17
	timeShift uint8 = 22

	// epoch: 2019-12-31T16:00:00Z (2020-01-01 00:00 at UTC+8)
	startTimestamp int64 = 1577808000000
)

// Worker generates monotonically increasing 64-bit ids.
type Worker struct {
	mu            sync.Mutex
	lastTimestamp int64
	workerID      int64
	datacenterID  int64
	sequence      int64
}

// New returns a Worker for the given worker/datacenter id pair.
func New(workerID, datacenterID int64) (*Worker, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, errors.New("idgen: workerID must be between 0 and 31")
	}
	if datacenterID < 0 || datacenterID > maxDatacenterID {
		return nil, errors.New("idgen: datacenterID must be between 0 and 31")
	}
	return &Worker{lastTimestamp: -1, workerID: workerID, datacenterID: datacenterID}, nil
}

// NextID returns the next id. Blocks briefly if the clock hasn't
// advanced since the last id in the current sequence was exhausted.
func (w *Worker) NextID() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	timestamp := currentMillis()
	if timestamp < w.lastTimestamp {
		return 0, errors.New("idgen: clock moved backwards, refusing to generate id")
	}

	if timestamp == w.lastTimestamp {
		w.sequence = (w.sequence + 1) & maxSequence
		if w.sequence == 0 {
			timestamp = w.tilNextMillis()
		}
	} else {
		w.sequence = 0
	}
	w.lastTimestamp = timestamp

	id := ((timestamp - startTimestamp) << timeShift) |
		(w.datacenterID << dataShift) |
		(w.workerID << workShift) |
		w.sequence
	return id, nil
}

func currentMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func (w *Worker) tilNextMillis() int64 {
	timestamp := currentMillis()
	for timestamp <= w.lastTimestamp {
		timestamp = currentMillis()
	}
	return timestamp
}
