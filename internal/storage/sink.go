package storage

import (
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
)

const defaultSinkBatch = 500

// LogSink receives engine events, encodes them as pool logs and writes them in batches.
// Publish cannot fail towards the engine, so the first error is kept and returned by Flush.
type LogSink struct {
	encoder   *dex.Encoder
	out       Storage
	batchSize int
	pending   []model.LogRecord
	written   int
	err       error
}

func NewLogSink(encoder *dex.Encoder, out Storage, batchSize int) *LogSink {
	if batchSize <= 0 {
		batchSize = defaultSinkBatch
	}
	return &LogSink{encoder: encoder, out: out, batchSize: batchSize}
}

func (s *LogSink) Publish(rec pool.Record) {
	if s.err != nil {
		return
	}
	logRecord, err := s.encoder.Encode(rec)
	if err != nil {
		s.err = err
		return
	}
	s.pending = append(s.pending, logRecord)
	if len(s.pending) >= s.batchSize {
		s.err = s.write()
	}
}

// Flush writes buffered logs and reports the first error seen since the sink was created.
func (s *LogSink) Flush() error {
	if s.err != nil {
		return s.err
	}
	s.err = s.write()
	return s.err
}

// Written counts logs handed to the storage.
func (s *LogSink) Written() int { return s.written }

func (s *LogSink) write() error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.out.PutLogBatch(s.pending); err != nil {
		return err
	}
	s.written += len(s.pending)
	s.pending = s.pending[:0]
	return nil
}
