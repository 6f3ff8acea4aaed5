package focus

// Stats summarizes one BuildContext call. Used covers every emitted message,
// the preamble included, so it always equals the summed message costs.
type Stats struct {
	Budget            int
	Used              int
	PreambleTokens    int
	RawTokens         int
	CompressedTokens  int
	PlaceholderTokens int

	ExpandedCount   int
	CompressedCount int
	StubCount       int

	ItemsTotal             int
	ItemsPlannedFull       int
	ItemsPlannedCompressed int
	ItemsPlannedStub       int
}

// Omitted is the number of stored turns that fit no fidelity level.
func (s Stats) Omitted() int {
	return s.ItemsTotal - s.ExpandedCount - s.CompressedCount - s.StubCount
}

// Map renders the stats as the flat numeric mapping printed in reports.
func (s Stats) Map() map[string]float64 {
	return map[string]float64{
		"budget":                   float64(s.Budget),
		"used":                     float64(s.Used),
		"preamble_tokens":          float64(s.PreambleTokens),
		"raw_tokens":               float64(s.RawTokens),
		"compressed_tokens":        float64(s.CompressedTokens),
		"placeholder_tokens":       float64(s.PlaceholderTokens),
		"expanded_count":           float64(s.ExpandedCount),
		"compressed_count":         float64(s.CompressedCount),
		"stub_count":               float64(s.StubCount),
		"items_total":              float64(s.ItemsTotal),
		"items_planned_full":       float64(s.ItemsPlannedFull),
		"items_planned_compressed": float64(s.ItemsPlannedCompressed),
		"items_planned_stub":       float64(s.ItemsPlannedStub),
	}
}

// StatKeys lists the Map keys in report order.
var StatKeys = []string{
	"budget",
	"used",
	"preamble_tokens",
	"raw_tokens",
	"compressed_tokens",
	"placeholder_tokens",
	"expanded_count",
	"compressed_count",
	"stub_count",
	"items_total",
	"items_planned_full",
	"items_planned_compressed",
	"items_planned_stub",
}

func (s *Stats) record(level Fidelity, cost int) {
	s.Used += cost
	switch level {
	case FidelityFull:
		s.RawTokens += cost
		s.ExpandedCount++
	case FidelityCompressed:
		s.CompressedTokens += cost
		s.CompressedCount++
	case FidelityPlaceholder:
		s.PlaceholderTokens += cost
		s.StubCount++
	}
}

func (s *Stats) plan(desired Fidelity) {
	switch desired {
	case FidelityFull:
		s.ItemsPlannedFull++
	case FidelityCompressed:
		s.ItemsPlannedCompressed++
	default:
		s.ItemsPlannedStub++
	}
}
