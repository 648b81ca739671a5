package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Entry maps a course display name to its course page URL
type Entry struct {
	Name string
	URL  string
}

// Catalog is an insertion-ordered set of course entries keyed by name.
// It encodes as a JSON object whose keys keep that order.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// New builds a catalog from entries, applying Set to each in turn
func New(entries ...Entry) *Catalog {
	c := &Catalog{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		c.Set(e.Name, e.URL)
	}
	return c
}

// Set adds name, or replaces its URL in place if it already exists
func (c *Catalog) Set(name, url string) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[name]; ok {
		c.entries[i].URL = url
		return
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, Entry{Name: name, URL: url})
}

func (c *Catalog) Get(name string) (string, bool) {
	i, ok := c.index[name]
	if !ok {
		return "", false
	}
	return c.entries[i].URL, true
}

// Entries returns a copy of the entries in order
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// MarshalJSON writes the entries as one object without HTML escaping
func (c *Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, e.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, e.URL); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat object of string values, keeping key order
func (c *Catalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("catalog is not a JSON object")
	}

	out := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		url, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("value for %q is not a string", key)
		}
		out.Set(key, url)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after catalog object")
	}

	*c = *out
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
