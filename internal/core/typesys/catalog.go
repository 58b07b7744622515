package typesys

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/event"
)

// SqlCatalog is built by walking a query's input streams, including JOIN
// sides and pattern state elements, collecting both stream ids and
// aliases. Unqualified column lookup searches all of them.
type SqlCatalog struct {
	streams map[string]*event.StreamDefinition
	aliases map[string]string // alias -> stream id
	order   []string          // insertion order of stream ids, for deterministic ambiguity errors
}

func NewSqlCatalog() *SqlCatalog {
	return &SqlCatalog{
		streams: make(map[string]*event.StreamDefinition),
		aliases: make(map[string]string),
	}
}

// AddStream registers a stream (or table) definition under its own id.
func (c *SqlCatalog) AddStream(id string, def *event.StreamDefinition) {
	if _, exists := c.streams[id]; !exists {
		c.order = append(c.order, id)
	}
	c.streams[id] = def
}

// AddAlias maps alias to an already-registered stream id.
func (c *SqlCatalog) AddAlias(alias, streamID string) {
	c.aliases[alias] = streamID
}

func (c *SqlCatalog) resolveStreamID(qualifier string) (string, bool) {
	if id, ok := c.aliases[qualifier]; ok {
		return id, true
	}
	if _, ok := c.streams[qualifier]; ok {
		return qualifier, true
	}
	return "", false
}

// StreamDefinition returns the definition registered under id, resolving id
// through the alias table first. Used by the query runtime (§4.H) to bind
// column references to positional indices when constructing an expression
// executor, which needs the full definition rather than just one column's
// type.
func (c *SqlCatalog) StreamDefinition(qualifier string) (*event.StreamDefinition, bool) {
	id, ok := c.resolveStreamID(qualifier)
	if !ok {
		return nil, false
	}
	return c.streams[id], true
}

// Resolve looks up a column's type. If qualifier is empty, every registered
// stream is searched; an unqualified name present in more than one stream
// is ambiguous.
func (c *SqlCatalog) Resolve(qualifier, column string) (Type, error) {
	if qualifier != "" {
		id, ok := c.resolveStreamID(qualifier)
		if !ok {
			return 0, errs.NewType("typesys.Resolve", "column",
				fmt.Errorf("unknown stream or alias %q", qualifier))
		}
		def := c.streams[id]
		idx := def.IndexOf(column)
		if idx < 0 {
			return 0, errs.NewType("typesys.Resolve", "column",
				fmt.Errorf("stream %q has no attribute %q", id, column))
		}
		return def.Attributes[idx].Kind, nil
	}

	var found Type
	var foundIn string
	for _, id := range c.order {
		def := c.streams[id]
		idx := def.IndexOf(column)
		if idx < 0 {
			continue
		}
		if foundIn != "" {
			return 0, errs.NewType("typesys.Resolve", "column",
				fmt.Errorf("column %q is ambiguous: present in both %q and %q", column, foundIn, id))
		}
		found = def.Attributes[idx].Kind
		foundIn = id
	}
	if foundIn == "" {
		return 0, errs.NewType("typesys.Resolve", "column",
			fmt.Errorf("unknown column %q", column))
	}
	return found, nil
}
