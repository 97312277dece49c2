package cache

import (
	"bytes"
	"fmt"

	"github.com/pierrec/lz4"
	"github.com/tinylib/msgp/msgp"
)

// Marshal encodes the cache as an lz4-compressed msgp stream (lz4.NewWriter
// wrapping msgp.NewWriter). No code generator is involved: EncodeMsg/DecodeMsg
// are hand-written against msgp's runtime Writer/Reader primitives.
func (c *Cache) Marshal() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	lz := lz4.NewWriter(&buf)
	w := msgp.NewWriter(lz)

	if err := c.encodeMsg(w); err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("cache: flush msgp writer: %w", err)
	}
	if err := lz.Close(); err != nil {
		return nil, fmt.Errorf("cache: close lz4 writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a blob produced by Marshal, replacing c's contents.
func (c *Cache) Unmarshal(blob []byte) error {
	lz := lz4.NewReader(bytes.NewReader(blob))
	r := msgp.NewReader(lz)

	fresh := New()
	if err := fresh.decodeMsg(r); err != nil {
		return fmt.Errorf("cache: decode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ValueToIdCache = fresh.ValueToIdCache
	c.IdToTypeCache = fresh.IdToTypeCache
	c.HostResolutionMap = fresh.HostResolutionMap
	c.MachineSidCache = fresh.MachineSidCache
	c.SidToDomainCache = fresh.SidToDomainCache
	c.GlobalCatalogCache = fresh.GlobalCatalogCache
	return nil
}

// encodeMsg writes the six maps as a msgp map-of-maps. Caller holds c.mu.
func (c *Cache) encodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(6); err != nil {
		return err
	}
	if err := writeNamedStrMap(w, "ValueToIdCache", c.ValueToIdCache); err != nil {
		return err
	}
	if err := writeNamedLabelMap(w, "IdToTypeCache", c.IdToTypeCache); err != nil {
		return err
	}
	if err := writeNamedStrMap(w, "HostResolutionMap", c.HostResolutionMap); err != nil {
		return err
	}
	if err := writeNamedStrMap(w, "MachineSidCache", c.MachineSidCache); err != nil {
		return err
	}
	if err := writeNamedStrMap(w, "SidToDomainCache", c.SidToDomainCache); err != nil {
		return err
	}
	return writeNamedStrMap(w, "GlobalCatalogCache", c.GlobalCatalogCache)
}

func writeNamedStrMap(w *msgp.Writer, name string, m map[string]string) error {
	if err := w.WriteString(name); err != nil {
		return err
	}
	if err := w.WriteMapHeader(uint32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteString(v); err != nil {
			return err
		}
	}
	return nil
}

func writeNamedLabelMap(w *msgp.Writer, name string, m map[string]Label) error {
	if err := w.WriteString(name); err != nil {
		return err
	}
	if err := w.WriteMapHeader(uint32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteString(string(v)); err != nil {
			return err
		}
	}
	return nil
}

// decodeMsg reads back the format encodeMsg produces. Field order on the wire
// is not assumed to match encodeMsg's write order beyond "six top-level
// entries", so each field is dispatched by its name key.
func (c *Cache) decodeMsg(r *msgp.Reader) error {
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "ValueToIdCache":
			c.ValueToIdCache, err = readStrMap(r)
		case "HostResolutionMap":
			c.HostResolutionMap, err = readStrMap(r)
		case "MachineSidCache":
			c.MachineSidCache, err = readStrMap(r)
		case "SidToDomainCache":
			c.SidToDomainCache, err = readStrMap(r)
		case "GlobalCatalogCache":
			c.GlobalCatalogCache, err = readStrMap(r)
		case "IdToTypeCache":
			c.IdToTypeCache, err = readLabelMap(r)
		default:
			err = r.Skip()
		}
		if err != nil {
			return fmt.Errorf("cache: field %q: %w", key, err)
		}
	}
	return nil
}

func readStrMap(r *msgp.Reader) (map[string]string, error) {
	n, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

func readLabelMap(r *msgp.Reader) (map[string]Label, error) {
	n, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	m := make(map[string]Label, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		m[k] = Label(v)
	}
	return m, nil
}
