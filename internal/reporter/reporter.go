// Package reporter turns a running simulation's block, structure, attack,
// event and error activity into CSV logs, matching the reference
// implementation's five-log-file output. No third-party CSV writer
// appears anywhere in the retrieval pack, so this uses the standard
// library's encoding/csv, the same as every other CSV-emitting example
// found in it.
package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/liaskos-cmg/cnsim-bitcoin/internal/bitcoin"
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/engine"
)

// eventKindNames gives EventLog rows a readable Kind column instead of a
// bare integer.
var eventKindNames = map[engine.Kind]string{
	bitcoin.EventClientTransaction:      "ClientTransaction",
	bitcoin.EventPropagatedTransaction:  "PropagatedTransaction",
	bitcoin.EventPropagatedBlock:        "PropagatedBlock",
	bitcoin.EventValidationComplete:     "ValidationComplete",
	bitcoin.EventHashPowerChange:        "HashPowerChange",
	bitcoin.EventBehaviorChange:         "BehaviorChange",
	bitcoin.EventTxArrival:              "TxArrival",
}

// Reporter implements bitcoin.Reporter by writing five append-only CSV
// logs (block, structure, attack, event, error). Flushing to the
// underlying writers is throttled by a rate limiter so a simulation that
// dispatches tens of thousands of events per second does not turn log
// flushing into the bottleneck.
type Reporter struct {
	logger *zap.Logger
	limit  ratelimit.Limiter

	blockLog     *csv.Writer
	structureLog *csv.Writer
	attackLog    *csv.Writer
	eventLog     *csv.Writer
	errorLog     *csv.Writer

	writesSinceFlush int
}

// New wires up a Reporter writing to the five given destinations. flushRPS
// bounds how many times per second the writers are flushed to their
// underlying files; pass 0 for no rate limit. Either way a writer is
// flushed only when it receives the 100th row written through the Reporter
// since the last flush, and by Flush.
func New(logger *zap.Logger, flushRPS int, blockW, structureW, attackW, eventW, errorW io.Writer) *Reporter {
	r := &Reporter{
		logger:       logger,
		blockLog:     csv.NewWriter(blockW),
		structureLog: csv.NewWriter(structureW),
		attackLog:    csv.NewWriter(attackW),
		eventLog:     csv.NewWriter(eventW),
		errorLog:     csv.NewWriter(errorW),
	}
	if flushRPS > 0 {
		r.limit = ratelimit.New(flushRPS)
	} else {
		r.limit = ratelimit.NewUnlimited()
	}

	r.blockLog.Write([]string{"SimTime", "NodeID", "BlockID", "Height", "ParentID", "TxCount", "Event"})
	r.structureLog.Write([]string{"SimTime", "NodeID", "Height", "TipID", "BlockCount"})
	r.attackLog.Write([]string{"SimTime", "NodeID", "Event", "Detail"})
	r.eventLog.Write([]string{"SimTime", "Kind", "Detail"})
	r.errorLog.Write([]string{"SimTime", "Error"})
	return r
}

func (r *Reporter) throttledFlush(w *csv.Writer) {
	r.writesSinceFlush++
	if r.writesSinceFlush < 100 {
		return
	}
	r.writesSinceFlush = 0
	r.limit.Take()
	w.Flush()
}

// LogBlock appends one row to the block log for a mined or received block.
func (r *Reporter) LogBlock(sim *bitcoin.Simulation, nodeID int, blk bitcoin.Block, event string) {
	blocksMined.WithLabelValues(event).Inc()
	err := r.blockLog.Write([]string{
		formatTime(sim),
		strconv.Itoa(nodeID),
		strconv.Itoa(blk.ID),
		strconv.Itoa(blk.Height),
		strconv.Itoa(blk.ParentID),
		strconv.Itoa(blk.Transactions.Len()),
		event,
	})
	if err != nil {
		r.logger.Warn("block log write failed", zap.Error(err))
	}
	r.throttledFlush(r.blockLog)
}

// LogStructure appends one row snapshotting a node's local chain view.
func (r *Reporter) LogStructure(sim *bitcoin.Simulation, nodeID int) {
	n, ok := sim.Nodes[nodeID]
	if !ok {
		return
	}
	tip := n.Structure.LongestTip()
	tipID := -1
	if tip != nil {
		tipID = tip.ID
	}
	err := r.structureLog.Write([]string{
		formatTime(sim),
		strconv.Itoa(nodeID),
		strconv.Itoa(n.Structure.Height()),
		strconv.Itoa(tipID),
		"",
	})
	if err != nil {
		r.logger.Warn("structure log write failed", zap.Error(err))
	}
	r.throttledFlush(r.structureLog)
}

// LogAttack appends one row describing an attack-state transition.
func (r *Reporter) LogAttack(sim *bitcoin.Simulation, nodeID int, event, detail string) {
	attackEvents.WithLabelValues(event).Inc()
	err := r.attackLog.Write([]string{formatTime(sim), strconv.Itoa(nodeID), event, detail})
	if err != nil {
		r.logger.Warn("attack log write failed", zap.Error(err))
	}
	r.throttledFlush(r.attackLog)
}

// LogEvent appends one row for every dispatched scheduler event.
func (r *Reporter) LogEvent(sim *bitcoin.Simulation, kind engine.Kind, detail string) {
	name, ok := eventKindNames[kind]
	if !ok {
		name = fmt.Sprintf("Unknown(%d)", kind)
	}
	eventsDispatched.WithLabelValues(name).Inc()
	err := r.eventLog.Write([]string{formatTime(sim), name, detail})
	if err != nil {
		r.logger.Warn("event log write failed", zap.Error(err))
	}
	r.throttledFlush(r.eventLog)
}

// LogError appends one row for every non-fatal structure/event error
// encountered during dispatch.
func (r *Reporter) LogError(sim *bitcoin.Simulation, cause error) {
	errorsLogged.Inc()
	r.logger.Warn("simulation structure error", zap.Error(cause))
	err := r.errorLog.Write([]string{formatTime(sim), cause.Error()})
	if err != nil {
		r.logger.Warn("error log write failed", zap.Error(err))
	}
	r.throttledFlush(r.errorLog)
}

// Flush forces every underlying CSV writer to flush, called once at the
// end of a run so the last buffered rows are not lost.
func (r *Reporter) Flush() {
	r.blockLog.Flush()
	r.structureLog.Flush()
	r.attackLog.Flush()
	r.eventLog.Flush()
	r.errorLog.Flush()
}

func formatTime(sim *bitcoin.Simulation) string {
	return strconv.FormatInt(sim.Scheduler.CurrentTime(), 10)
}
