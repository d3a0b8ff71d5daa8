package service

import (
	"context"
	"errors"

	"github.com/goto/salt/log"

	"github.com/NvTimLiu/spark-rapids-tools/core/eventlog"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
)

// AppModelBuilder replays one event log into an Application model. A
// builder is stateless between calls; each Ingest runs its own state
// machine, so builders can be shared across parallel workers.
type AppModelBuilder struct {
	logger   log.Logger
	reader   *eventlog.Reader
	detectML bool
}

func NewAppModelBuilder(logger log.Logger, reader *eventlog.Reader, detectML bool) *AppModelBuilder {
	return &AppModelBuilder{logger: logger, reader: reader, detectML: detectML}
}

// Ingest replays the log at path. Individually malformed records are
// skipped; a stream that becomes unreadable mid-way yields whatever was
// accumulated. The returned outcome is UNKNOWN with a nil Application for
// GPU-origin logs, UNKNOWN with a partial Application for truncated logs
// that captured no SQL execution, otherwise SUCCESS.
func (b *AppModelBuilder) Ingest(ctx context.Context, path string) (*qualification.Application, qualification.Outcome, error) {
	stream, err := b.reader.Open(path)
	if err != nil {
		return nil, qualification.StatusFailure, err
	}
	defer stream.Close()

	state := NewModelState(b.logger, b.detectML)
	scanner := eventlog.NewScanner(stream)
	malformed := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, qualification.StatusFailure, err
		}
		record, err := eventlog.Decode(scanner.Bytes())
		if err != nil {
			malformed++
			continue
		}
		if record == nil {
			continue
		}
		if err := state.Apply(record); err != nil {
			if errors.Is(err, ErrGpuEventLog) {
				b.logger.Warn("%s is from a GPU run, skipping", path)
				return nil, qualification.StatusUnknown, err
			}
			return nil, qualification.StatusFailure, err
		}
	}

	if malformed > 0 {
		b.logger.Debug("skipped %d malformed records in %s", malformed, path)
	}

	app := state.Finalize()
	if scanner.Truncated() {
		b.logger.Warn("%s ended mid-record, using partial model", path)
		if len(app.SQL) == 0 {
			return app, qualification.StatusUnknown, nil
		}
	}
	return app, qualification.StatusSuccess, nil
}
