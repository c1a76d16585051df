package feature

// Labels is the ordered list of fitted features. Position i is the feature of coefficient i.
type Labels struct {
	idx    map[string]int
	labels []Feature
}

func NewLabels(labels []Feature) *Labels {
	idx := make(map[string]int, len(labels))
	for i, label := range labels {
		idx[label.String()] = i
	}
	return &Labels{labels: labels, idx: idx}
}

func (f *Labels) Len() int {
	if f == nil {
		return 0
	}
	return len(f.labels)
}

// Labels returns a copy of the features in coefficient order
func (f *Labels) Labels() []Feature {
	if f == nil {
		return nil
	}
	return append([]Feature(nil), f.labels...)
}

// Index returns the coefficient position of label
func (f *Labels) Index(label Feature) (int, bool) {
	if f == nil {
		return -1, false
	}
	idx, exists := f.idx[label.String()]
	if !exists {
		return -1, false
	}
	return idx, true
}

// Events returns the fitted calendar events with their coefficient positions in coefficient
// order
func (f *Labels) Events() ([]Event, []int) {
	if f == nil {
		return nil, nil
	}
	var (
		events []Event
		pos    []int
	)
	for i, label := range f.labels {
		var ev Event
		switch e := label.(type) {
		case *Event:
			ev = *e
		case Event:
			ev = e
		default:
			continue
		}
		events = append(events, ev)
		pos = append(pos, i)
	}
	return events, pos
}
