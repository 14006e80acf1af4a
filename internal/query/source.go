package query

// EntrySource produces document ids in ascending order, a batch at a time.
type EntrySource interface {
	// Read copies the next ids into buf and returns how many it wrote. Zero
	// means the source is exhausted.
	Read(buf []int64) int
	Name() string
}

// SliceSource serves ids from memory. The ids must be ascending.
type SliceSource struct {
	name string
	ids  []int64
	pos  int
}

func NewSliceSource(name string, ids []int64) *SliceSource {
	return &SliceSource{name: name, ids: ids}
}

func (s *SliceSource) Read(buf []int64) int {
	n := copy(buf, s.ids[s.pos:])
	s.pos += n
	return n
}

func (s *SliceSource) Name() string { return s.name }

// EmptySource never yields anything.
type EmptySource struct{}

func (EmptySource) Read([]int64) int { return 0 }
func (EmptySource) Name() string     { return "empty" }
