package fastview

import (
	"html/template"
)

// EleUpdate names a page element and the operations to apply to it.
type EleUpdate struct {
	// The id by which the client finds the element.
	EleId string
	// Op keys are attribute names or 'textContent', values are what they are set to.
	// ('fill','lightblue') sets the fill attribute; ('textContent','1.50') sets the element text.
	Ops []Op
}

// Op is a key and value, for example an svg attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// TextContent is the reserved Op key for an element's text rather than an attribute.
const TextContent = "textContent"

// ViewComponent is a server side view. Parse adds its initial form to a parent template,
// and Updates is the chan by which ele-updates for the rendered page are sent.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse defines the component's template within the parent, whose func-map it may use,
	// and returns the defined template's name.
	Parse(*template.Template) (string, error)
}
