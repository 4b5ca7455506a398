package listings

import "strings"

// NormalizeName lower-cases, trims and collapses inner whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Catalog is an in-memory view of the make/model reference tables keyed by normalized name.
type Catalog struct {
	models map[string]map[string]struct{}
}

func NewCatalog(makes []*Make, models []*Model) *Catalog {
	names := make(map[string]string, len(makes))
	c := &Catalog{models: make(map[string]map[string]struct{}, len(makes))}
	for _, mk := range makes {
		if mk == nil {
			continue
		}
		key := NormalizeName(mk.Name)
		names[mk.ID.String()] = key
		if _, ok := c.models[key]; !ok {
			c.models[key] = map[string]struct{}{}
		}
	}
	for _, md := range models {
		if md == nil {
			continue
		}
		mk, ok := names[md.MakeID.String()]
		if !ok {
			continue
		}
		c.models[mk][NormalizeName(md.Name)] = struct{}{}
	}
	return c
}

func (c *Catalog) HasMake(makeName string) bool {
	if c == nil {
		return false
	}
	_, ok := c.models[NormalizeName(makeName)]
	return ok
}

func (c *Catalog) HasModel(makeName, modelName string) bool {
	if c == nil {
		return false
	}
	models, ok := c.models[NormalizeName(makeName)]
	if !ok {
		return false
	}
	_, ok = models[NormalizeName(modelName)]
	return ok
}
