package pga

// Selector picks one of the two PGA inputs.
type Selector uint8

const (
	VoltageChannel Selector = 0
	CurrentChannel Selector = 1
)

func (s Selector) String() string {
	switch s {
	case VoltageChannel:
		return "voltage"
	case CurrentChannel:
		return "current"
	default:
		return "unknown"
	}
}

// Channel is one physical analog input together with the gain index the
// autoranging sampler has settled on for it. A channel starts at index 0 and
// is only ever stepped by the sampler.
type Channel struct {
	sel   Selector
	index uint8
	table *Table
}

// NewChannel creates a channel reading through the given selector. The table
// is shared and must not change after the channel is created.
func NewChannel(sel Selector, table *Table) *Channel {
	return &Channel{sel: sel, table: table}
}

// Selector returns the PGA input of the channel.
func (c *Channel) Selector() Selector { return c.sel }

// Index returns the current gain index.
func (c *Channel) Index() uint8 { return c.index }

// Gain returns the multiplier for the current gain index.
func (c *Channel) Gain() int64 { return c.table.Gain(c.index) }

// Table returns the shared gain table.
func (c *Channel) Table() *Table { return c.table }

// Reset returns the channel to the lowest gain.
func (c *Channel) Reset() { c.index = 0 }
