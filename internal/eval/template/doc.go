// Package template provides a Handlebars engine for static markup fragments.
//
// Markup is compiled once and cached. Dynamic values are pulled through the
// slot helper, which calls back into the caller for each slot the markup
// actually renders; slots inside an untaken {{#if}} are never resolved.
//
// Example usage:
//
//	engine := template.NewEngine()
//
//	markup := "<p>{{title}}: {{slot \"greeting\"}}</p>{{#if (slot \"admin\")}}<b>admin</b>{{/if}}"
//	data := map[string]interface{}{"title": "Welcome"}
//
//	result, err := engine.Render(markup, data, func(name string) (interface{}, error) {
//	    return slots[name], nil
//	})
//	// Output: <p>Welcome: Hello Tom</p>
//
// Slot values are HTML-escaped like any other mustache output.
package template
