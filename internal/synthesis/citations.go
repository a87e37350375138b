package synthesis

import "github.com/user/knowledge-service/internal/entity"

const untitled = "Untitled"

// Citation numbers a distinct source in order of first appearance among the hits.
type Citation struct {
	Index    int
	SourceID int64
	Title    string
	URL      string
}

// Citations is an ordered source id -> citation map.
type Citations struct {
	list []Citation
	byID map[int64]int
}

// BuildCitations assigns indexes 1..n to sources in hit order.
func BuildCitations(hits []entity.RankedChunk) *Citations {
	c := &Citations{byID: make(map[int64]int)}
	for _, h := range hits {
		if _, ok := c.byID[h.SourceID]; ok {
			continue
		}
		title := h.Title
		if title == "" {
			title = untitled
		}
		c.byID[h.SourceID] = len(c.list)
		c.list = append(c.list, Citation{
			Index:    len(c.list) + 1,
			SourceID: h.SourceID,
			Title:    title,
			URL:      h.URL,
		})
	}
	return c
}

func (c *Citations) Get(sourceID int64) (Citation, bool) {
	if c == nil {
		return Citation{}, false
	}
	i, ok := c.byID[sourceID]
	if !ok {
		return Citation{}, false
	}
	return c.list[i], true
}

func (c *Citations) Len() int {
	if c == nil {
		return 0
	}
	return len(c.list)
}

// List returns citations ordered by index.
func (c *Citations) List() []Citation {
	if c == nil {
		return nil
	}
	return append([]Citation(nil), c.list...)
}
