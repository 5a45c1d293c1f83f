package sensor

// DetectionPool recycles Detection records between scans. It is owned by one
// sensor and is not safe for concurrent use.
type DetectionPool struct {
	free     []*Detection
	capacity int
	enabled  bool
	created  int
}

func NewDetectionPool(initial, capacity int, enabled bool) *DetectionPool {
	p := &DetectionPool{capacity: capacity, enabled: enabled}
	if !enabled {
		return p
	}
	p.free = make([]*Detection, 0, capacity)
	for i := 0; i < initial && i < capacity; i++ {
		p.free = append(p.free, &Detection{})
		p.created++
	}
	return p
}

// Get returns a zeroed record, allocating only when the pool is empty.
func (p *DetectionPool) Get() *Detection {
	if n := len(p.free); p.enabled && n > 0 {
		d := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return d
	}
	p.created++
	return &Detection{}
}

// Put returns a record. Records beyond capacity are left to the GC.
func (p *DetectionPool) Put(d *Detection) {
	if d == nil || !p.enabled || len(p.free) >= p.capacity {
		return
	}
	d.reset()
	p.free = append(p.free, d)
}

// PutAll releases a whole scan result.
func (p *DetectionPool) PutAll(ds []*Detection) {
	for _, d := range ds {
		p.Put(d)
	}
}

// Available is the number of idle records held by the pool.
func (p *DetectionPool) Available() int { return len(p.free) }

// Created counts every record ever allocated, pooled or not.
func (p *DetectionPool) Created() int { return p.created }
