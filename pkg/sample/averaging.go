package sample

import (
	"log"
	"time"
)

// AveragingPeriod is how often an averaging converter emits.
const AveragingPeriod = 100 * time.Millisecond

// NewAveragingConverter creates a stage that averages the values of the last
// windowSize samples and emits the average every AveragingPeriod. A mode
// change restarts the window. Samples without a value are not averaged: when
// the newest sample has none it is passed on as is.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var buffer []Sample
			ticker := time.NewTicker(AveragingPeriod)
			defer ticker.Stop()

			for {
				select {
				case sample, ok := <-in:
					if !ok {
						// Input closed, output any remaining samples
						if len(buffer) > 0 {
							select {
							case out <- averageSamples(buffer):
							default:
							}
						}
						return
					}

					if len(buffer) > 0 && buffer[0].Mode != sample.Mode {
						buffer = buffer[:0]
					}
					buffer = append(buffer, sample)
					if len(buffer) > windowSize {
						buffer = buffer[1:] // Remove oldest
					}

				case <-ticker.C:
					if len(buffer) > 0 {
						select {
						case out <- averageSamples(buffer):
						default:
							log.Printf("Averaging converter output channel full")
						}
					}
				}
			}
		}()

		return out
	}
}

// averageSamples averages the samples with a value. The result carries the
// timestamp, status and gain index of the newest sample.
func averageSamples(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	last := samples[len(samples)-1]
	if !last.OK() {
		return last
	}

	var sum float64
	var n int
	for _, s := range samples {
		if s.OK() {
			sum += s.Value
			n++
		}
	}

	last.Value = sum / float64(n)
	return last
}
