package pga

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrRaw = errors.New("pga: raw sample above full scale")

// ADC reads one 10-bit sample of whatever input the amplifier currently routes.
type ADC interface {
	Read() (uint16, error)
}

// State is the classification of a raw sample against the gain table.
type State uint8

const (
	// InRange means the sample can be converted at the current gain.
	InRange State = iota
	// Overflow means the sample is near full scale and the gain can go down.
	Overflow
	// Underflow means the sample is small enough for the next gain up.
	Underflow
	// SaturatedLow means the sample overflows at the lowest gain.
	SaturatedLow
	// SaturatedHigh means the sample is small but the gain is already at the
	// top. It is converted anyway with the best precision available.
	SaturatedHigh
)

func (s State) String() string {
	switch s {
	case InRange:
		return "in_range"
	case Overflow:
		return "overflow"
	case Underflow:
		return "underflow"
	case SaturatedLow:
		return "saturated_low"
	case SaturatedHigh:
		return "saturated_high"
	default:
		return "unknown"
	}
}

// Classify places raw against the thresholds of gain index.
func Classify(raw uint16, index uint8, t *Table) State {
	switch {
	case raw > OverflowLevel:
		if index > 0 {
			return Overflow
		}
		return SaturatedLow
	case raw < t.Thresholds[index&MaxIndex]:
		if index < MaxIndex {
			return Underflow
		}
		return SaturatedHigh
	default:
		return InRange
	}
}

// Step is the outcome of one sampler call.
type Step struct {
	Raw   uint16
	State State
	// Index is the gain index the sample was taken at.
	Index uint8
	// Changed is set when the call stepped the channel gain. The sample is
	// stale and the caller should retry.
	Changed bool
}

// Convertible reports whether Raw may be turned into a physical value.
func (s Step) Convertible() bool {
	return !s.Changed && (s.State == InRange || s.State == SaturatedHigh)
}

// Sampler performs one autoranging step per call on a channel. It owns the
// gain register; a mutex keeps the gain write, the settling wait and the
// dependent ADC read together when several goroutines share it.
type Sampler struct {
	mu sync.Mutex

	reg    *Register
	adc    ADC
	settle time.Duration
	sleep  func(time.Duration)

	// unsettled is set after every register write and cleared by the wait
	// that precedes the next read.
	unsettled bool
}

// NewSampler creates a sampler. A zero settle uses DefaultSettle; a nil sleep
// uses time.Sleep. Tests pass a no-op sleep.
func NewSampler(reg *Register, adc ADC, settle time.Duration, sleep func(time.Duration)) *Sampler {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Sampler{
		reg:    reg,
		adc:    adc,
		settle: settle,
		sleep:  sleep,
	}
}

// Settle returns the configured settling delay.
func (s *Sampler) Settle() time.Duration { return s.settle }

// Select routes ch through the amplifier at its current gain and waits for the
// input to settle. It does nothing if the register already holds that pair.
func (s *Sampler) Select(ch *Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(ch)
}

// ReadAtGain reads ch once at gain index without classifying the sample or
// stepping the gain. The channel keeps its own index; the next Sample or
// Select on it writes that index back.
func (s *Sampler) ReadAtGain(ch *Channel, index uint8) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(index, ch.sel); err != nil {
		return 0, err
	}
	return s.readLocked(ch)
}

// Sample reads ch once and applies at most one gain step.
//
// Overflow steps the gain down and Underflow steps it up; both write the new
// gain immediately and return a Step with Changed set. SaturatedLow leaves the
// gain at 0 and SaturatedHigh leaves it at the top.
func (s *Sampler) Sample(ch *Channel) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectLocked(ch); err != nil {
		return Step{}, err
	}

	raw, err := s.readLocked(ch)
	if err != nil {
		return Step{}, err
	}

	step := Step{Raw: raw, Index: ch.index, State: Classify(raw, ch.index, ch.table)}

	switch step.State {
	case Overflow:
		err = s.stepLocked(ch, ch.index-1)
		step.Changed = err == nil
	case Underflow:
		err = s.stepLocked(ch, ch.index+1)
		step.Changed = err == nil
	}
	return step, err
}

func (s *Sampler) selectLocked(ch *Channel) error {
	return s.writeLocked(ch.index, ch.sel)
}

// writeLocked puts (index, sel) in the register unless it is already there
// and waits out any pending settle.
func (s *Sampler) writeLocked(index uint8, sel Selector) error {
	last, lastSel, ok := s.reg.Last()
	if !ok || last != index || lastSel != sel {
		if err := s.reg.Set(index, sel); err != nil {
			return err
		}
		s.unsettled = true
	}
	if s.unsettled {
		s.sleep(s.settle)
		s.unsettled = false
	}
	return nil
}

func (s *Sampler) readLocked(ch *Channel) (uint16, error) {
	raw, err := s.adc.Read()
	if err != nil {
		return 0, fmt.Errorf("pga: read %s: %w", ch.sel, err)
	}
	if raw > MaxRaw {
		return 0, fmt.Errorf("%w: %d", ErrRaw, raw)
	}
	return raw, nil
}

func (s *Sampler) stepLocked(ch *Channel, index uint8) error {
	if err := s.reg.Set(index, ch.sel); err != nil {
		return err
	}
	ch.index = index
	s.unsettled = true
	return nil
}
