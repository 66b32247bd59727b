package printer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/fichero/internal/ble/protocol"
	"github.com/chaz8081/fichero/internal/raster"
)

// Print sequence timing, measured against the vendor app. Shorter gaps make
// the printer drop commands.
const (
	DelayAfterDensity = 100 * time.Millisecond
	DelayCommandGap   = 50 * time.Millisecond
	DelayRasterSettle = 600 * time.Millisecond
	DelayAfterFeed    = 300 * time.Millisecond
	// StopAckTimeout bounds the wait for the stop acknowledgement, which
	// only arrives once the label has been fed out.
	StopAckTimeout = 60 * time.Second
)

type jobState int

const (
	stateIdle jobState = iota
	stateDensitySet
	statePaperSet
	stateWokenUp
	stateEnabled
	stateRasterSent
	stateSettled
	stateFedForward
	stateStopped
)

var stateNames = [...]string{
	stateIdle:       "idle",
	stateDensitySet: "density-set",
	statePaperSet:   "paper-set",
	stateWokenUp:    "woken-up",
	stateEnabled:    "enabled",
	stateRasterSent: "raster-sent",
	stateSettled:    "settled",
	stateFedForward: "fed-forward",
	stateStopped:    "stopped",
}

func (s jobState) String() string { return stateNames[s] }

// CopyResult records the outcome of one printed copy.
type CopyResult struct {
	Copy  int
	Acked bool
}

// JobResult describes a finished or interrupted print job.
type JobResult struct {
	ID           uuid.UUID
	Rows         int
	DensityAcked bool
	Copies       []CopyResult
}

// Warnings lists the unacknowledged density command and the copies whose
// stop command went unacknowledged.
func (r *JobResult) Warnings() []string {
	var out []string
	if !r.DensityAcked {
		out = append(out, "density: no OK/0xAA from set density command")
	}
	for _, c := range r.Copies {
		if !c.Acked {
			out = append(out, fmt.Sprintf("copy %d: no OK/0xAA from stop command", c.Copy))
		}
	}
	return out
}

// PrintRaster prints copies of b. Arguments are validated before anything is
// sent. The job is refused with ErrNotReady when the status check reports a
// fault. A missing stop acknowledgement is recorded in the result rather than
// failing the job. Cancelling ctx stops the job before the next copy starts.
func (c *Client) PrintRaster(ctx context.Context, b raster.Bitmap, density protocol.Density, paper protocol.PaperType, copies int) (*JobResult, error) {
	densityFrame, err := protocol.SetDensity(density)
	if err != nil {
		return nil, err
	}
	paperFrame, err := protocol.SetPaperType(paper)
	if err != nil {
		return nil, err
	}
	if copies < 1 {
		return nil, fmt.Errorf("printer: copies must be at least 1, got %d: %w", copies, ErrInvalidArgument)
	}
	rasterFrame, err := raster.Encode(b)
	if err != nil {
		return nil, err
	}

	j := &job{
		c:       c,
		density: densityFrame,
		paper:   paperFrame,
		raster:  rasterFrame,
		copies:  copies,
		result:  &JobResult{ID: uuid.New(), Rows: b.Height()},
	}
	j.log = slog.With("job", j.result.ID.String())
	return j.run(ctx)
}

// job is one run of the print state machine.
type job struct {
	c       *Client
	density protocol.Frame
	paper   protocol.Frame
	raster  protocol.Frame
	copies  int
	result  *JobResult
	state   jobState
	log     *slog.Logger
}

func (j *job) enter(s jobState) {
	j.log.Debug("[PRINT] state", "from", j.state, "to", s)
	j.state = s
}

func (j *job) run(ctx context.Context) (*JobResult, error) {
	j.log.Info("[PRINT] job start", "rows", j.result.Rows, "bytes", len(j.raster)-protocol.RasterHeaderLen, "copies", j.copies)

	status, err := j.c.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return nil, fmt.Errorf("printer: %s (status 0x%02X): %w", status, status.Raw, ErrNotReady)
	}

	acked, err := j.c.ackQuery(ctx, j.density, j.c.opts.ReplyTimeout)
	if err != nil {
		return nil, fmt.Errorf("printer: set density: %w", err)
	}
	j.result.DensityAcked = acked
	if !acked {
		j.log.Warn("[PRINT] no OK/0xAA from set density command")
	}
	j.enter(stateDensitySet)
	j.c.sleep(DelayAfterDensity)

	for n := 1; n <= j.copies; n++ {
		if err := ctx.Err(); err != nil {
			j.enter(stateIdle)
			return j.result, fmt.Errorf("printer: job cancelled before copy %d/%d: %w", n, j.copies, err)
		}
		// A started copy runs to completion.
		acked, err := j.printCopy(context.WithoutCancel(ctx))
		if err != nil {
			j.enter(stateIdle)
			return j.result, fmt.Errorf("printer: copy %d/%d: %w", n, j.copies, err)
		}
		j.result.Copies = append(j.result.Copies, CopyResult{Copy: n, Acked: acked})
		if !acked {
			j.log.Warn("[PRINT] no OK/0xAA from stop command", "copy", n)
		}
		j.log.Info("[PRINT] copy done", "copy", n, "of", j.copies)
	}

	j.enter(stateIdle)
	return j.result, nil
}

// printCopy runs one pass of the per-copy sequence and returns whether the
// stop command was acknowledged.
func (j *job) printCopy(ctx context.Context) (bool, error) {
	steps := []struct {
		state jobState
		frame protocol.Frame
		delay time.Duration
	}{
		{statePaperSet, j.paper, DelayCommandGap},
		{stateWokenUp, protocol.Wakeup(), DelayCommandGap},
		{stateEnabled, protocol.Enable(), DelayCommandGap},
		{stateRasterSent, j.raster, 0},
	}
	for _, s := range steps {
		if err := j.c.write(s.frame); err != nil {
			return false, fmt.Errorf("%v: %w", s.state, err)
		}
		j.enter(s.state)
		if s.delay > 0 {
			j.c.sleep(s.delay)
		}
	}

	j.c.sleep(DelayRasterSettle)
	j.enter(stateSettled)

	if err := j.c.FormFeed(); err != nil {
		return false, fmt.Errorf("%v: %w", stateFedForward, err)
	}
	j.enter(stateFedForward)
	j.c.sleep(DelayAfterFeed)

	acked, err := j.c.StopPrint(ctx)
	if err != nil {
		return false, fmt.Errorf("%v: %w", stateStopped, err)
	}
	j.enter(stateStopped)
	return acked, nil
}
