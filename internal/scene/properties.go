package scene

// Property is one named value of an ordered property set.
type Property struct {
	Name  string
	Value string
}

// Properties is an insertion-ordered string map. The zero value is ready to use.
type Properties struct {
	items []Property
	index map[string]int
}

// NewProperties returns a set populated with the given name/value pairs.
func NewProperties(pairs ...Property) *Properties {
	p := &Properties{}
	for _, pair := range pairs {
		p.Set(pair.Name, pair.Value)
	}
	return p
}

// Get returns the value stored under name.
func (p *Properties) Get(name string) (string, bool) {
	if p == nil || p.index == nil {
		return "", false
	}
	i, ok := p.index[name]
	if !ok {
		return "", false
	}
	return p.items[i].Value, true
}

// Value returns the value stored under name or "".
func (p *Properties) Value(name string) string {
	v, _ := p.Get(name)
	return v
}

// Has reports whether name is present.
func (p *Properties) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Set stores value under name, keeping the original position of existing names.
func (p *Properties) Set(name, value string) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[name]; ok {
		p.items[i].Value = value
		return
	}
	p.index[name] = len(p.items)
	p.items = append(p.items, Property{Name: name, Value: value})
}

// Delete removes name and reports whether it was present.
func (p *Properties) Delete(name string) bool {
	if p == nil || p.index == nil {
		return false
	}
	i, ok := p.index[name]
	if !ok {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	delete(p.index, name)
	for j := i; j < len(p.items); j++ {
		p.index[p.items[j].Name] = j
	}
	return true
}

// Len returns the number of stored names.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

// All returns a copy of the stored pairs in insertion order.
func (p *Properties) All() []Property {
	if p == nil {
		return nil
	}
	out := make([]Property, len(p.items))
	copy(out, p.items)
	return out
}

// Clone returns an independent copy.
func (p *Properties) Clone() *Properties {
	return NewProperties(p.All()...)
}

// Equal reports whether both sets hold the same pairs in the same order.
func (p *Properties) Equal(other *Properties) bool {
	if p.Len() != other.Len() {
		return false
	}
	a, b := p.All(), other.All()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
