package scanner

import "sync"

// Phase weights, expressed as the share of a file's megabyte size that
// each completed phase contributes to the root's running total. Four
// digest phases at 24% plus the metadata phase at 4% account for the
// file's full weight.
const (
	digestPhaseWeight   = 0.24
	metadataPhaseWeight = 0.04
	bytesPerMegabyte    = 1024 * 1024
)

// ProgressFunc receives completion updates for one search root.
type ProgressFunc func(root string, percent float64)

// ProgressEstimator tracks weighted megabytes processed under a single
// search root against a total computed before processing starts. It is
// safe for concurrent use by hashing workers; the reported percentage
// is monotonically non-decreasing and clamped at 100.
type ProgressEstimator struct {
	root string
	emit ProgressFunc

	mu      sync.Mutex
	totalMB float64
	doneMB  float64
	percent float64
}

// NewProgressEstimator creates an estimator for root over totalBytes of
// file content. A zero total reports 100% immediately so empty roots
// never divide by zero. The emit callback may be nil.
func NewProgressEstimator(root string, totalBytes uint64, emit ProgressFunc) *ProgressEstimator {
	p := &ProgressEstimator{
		root:    root,
		emit:    emit,
		totalMB: float64(totalBytes) / bytesPerMegabyte,
	}
	if totalBytes == 0 {
		p.percent = 100.0
		if emit != nil {
			emit(root, 100.0)
		}
	}
	return p
}

// DigestPhase records completion of the digest pass over one file for
// the given number of algorithms.
func (p *ProgressEstimator) DigestPhase(sizeBytes uint64, algorithms int) {
	p.advance(float64(sizeBytes) / bytesPerMegabyte * digestPhaseWeight * float64(algorithms))
}

// MetadataPhase records completion of the metadata retrieval phase for
// one file.
func (p *ProgressEstimator) MetadataPhase(sizeBytes uint64) {
	p.advance(float64(sizeBytes) / bytesPerMegabyte * metadataPhaseWeight)
}

// FileSkipped consumes a skipped file's entire weight (all digest
// phases plus metadata) so the root still converges on 100% when files
// are dropped mid-run.
func (p *ProgressEstimator) FileSkipped(sizeBytes uint64) {
	p.advance(float64(sizeBytes) / bytesPerMegabyte)
}

// Percent returns the last reported completion percentage.
func (p *ProgressEstimator) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

func (p *ProgressEstimator) advance(weightedMB float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalMB == 0 {
		return
	}
	p.doneMB += weightedMB

	percent := p.doneMB / p.totalMB * 100.0
	if percent > 100.0 {
		percent = 100.0
	}
	if percent <= p.percent {
		return
	}
	p.percent = percent
	// Emitted under the lock to keep the observed sequence ordered;
	// callbacks must not call back into the estimator.
	if p.emit != nil {
		p.emit(p.root, percent)
	}
}
