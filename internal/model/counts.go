package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Counts is a class -> count mapping that remembers the order in which
// classes were first added. Missing classes read as zero. The zero value
// is an empty, usable Counts.
type Counts struct {
	keys   []string
	values map[string]int
}

// NewCounts builds a Counts from class/count pairs in the given order.
func NewCounts(pairs ...any) Counts {
	var c Counts
	for i := 0; i+1 < len(pairs); i += 2 {
		c.Add(pairs[i].(string), pairs[i+1].(int))
	}
	return c
}

// Add increments class by n, registering it on first use.
func (c *Counts) Add(class string, n int) {
	if c.values == nil {
		c.values = make(map[string]int)
	}
	if _, ok := c.values[class]; !ok {
		c.keys = append(c.keys, class)
	}
	c.values[class] += n
}

// Get returns the count for class, or 0.
func (c Counts) Get(class string) int {
	return c.values[class]
}

// Has reports whether class was ever added.
func (c Counts) Has(class string) bool {
	_, ok := c.values[class]
	return ok
}

// Keys returns the classes in insertion order.
func (c Counts) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of distinct classes.
func (c Counts) Len() int {
	return len(c.keys)
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	total := 0
	for _, k := range c.keys {
		total += c.values[k]
	}
	return total
}

// Each calls fn for every class in insertion order.
func (c Counts) Each(fn func(class string, count int)) {
	for _, k := range c.keys {
		fn(k, c.values[k])
	}
}

// Merge adds every count of o into c, in o's order.
func (c *Counts) Merge(o Counts) {
	o.Each(c.Add)
}

// MostCommon returns the class with the highest count. Ties go to the
// class inserted first. ok is false when c is empty.
func (c Counts) MostCommon() (class string, count int, ok bool) {
	for _, k := range c.keys {
		if v := c.values[k]; !ok || v > count {
			class, count, ok = k, v, true
		}
	}
	return class, count, ok
}

// Clone returns an independent copy.
func (c Counts) Clone() Counts {
	var out Counts
	out.Merge(c)
	return out
}

// Equal reports whether both hold the same mapping, ignoring order.
func (c Counts) Equal(o Counts) bool {
	if len(c.keys) != len(o.keys) {
		return false
	}
	for _, k := range c.keys {
		if !o.Has(k) || o.values[k] != c.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON writes a JSON object with keys in insertion order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", c.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the key order of the input.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Counts{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("counts: expected object, got %v", tok)
	}

	var out Counts
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("counts: expected key, got %v", tok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("counts: value for %q: %w", key, err)
		}
		if n < 0 {
			return fmt.Errorf("counts: negative count %d for %q", n, key)
		}
		if out.Has(key) {
			return fmt.Errorf("counts: duplicate key %q", key)
		}
		out.Add(key, n)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
