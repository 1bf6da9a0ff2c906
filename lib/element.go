package lib

import "gopkg.in/guregu/null.v3"

// Attribute-map keys the recorder emits for every targeted DOM node. Only
// the ones the execution core reads are named here; the map may carry more.
const (
	AttrTagName     = "tagName"
	AttrID          = "id"
	AttrName        = "name"
	AttrXPath       = "xpath"
	AttrInnerText   = "innerText"
	AttrTextContent = "textContent"
	AttrValue       = "value"
	AttrClass       = "class"
	AttrType        = "type"
	AttrHref        = "href"
	AttrSrc         = "src"
	AttrURL         = "url"
)

// Element describes a targeted DOM node at record time. ElementID is the
// stable grouping key, assigned lazily when the element is merged into a
// duplicate group; Data is the flat attribute map captured by the recorder.
//
// An Element is created once per recorded interaction and mutated only to
// backfill a shared ElementID.
type Element struct {
	ElementID null.String    `json:"element_id"`
	Data      map[string]any `json:"element_data"`
}

// Attr returns the string form of a recorded attribute, or "" when the
// attribute is absent or not a string.
func (e Element) Attr(key string) string {
	v, ok := e.Data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
