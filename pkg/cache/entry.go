package cache

// Tier is one of the two storage levels of a TieredStore.
type Tier uint8

const (
	TierMemory Tier = iota + 1
	TierDisk
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Entry is a cached value together with its bookkeeping.
// A key is resident in at most one tier at a time.
type Entry struct {
	Key   string
	Value []byte
	Size  int64
	Tier  Tier
	// LastAccess is a counter shared by both tiers of a store; larger is more recent.
	LastAccess uint64

	memoryOnly bool
}
