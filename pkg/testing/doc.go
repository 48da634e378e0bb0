// Package testing provides a widget testing harness for Prism.
//
// # Quick Start
//
// Create a tester, register a model, create a view, and drive events:
//
//	func TestMyWidget(t *testing.T) {
//	    tester := prismtest.NewTesterWithT(t)
//
//	    m, _ := widgets.NewLinkModel()
//	    tester.RegisterModel(m)
//	    v, _ := tester.CreateView(m.ID())
//
//	    tester.Click(v)
//	    tester.Pump()
//
//	    if got := tester.LastSurface().String(); got != "[x]" {
//	        t.Errorf("render = %q", got)
//	    }
//	}
//
// The test goroutine stands in for the session loop: model and view
// calls run directly, and Pump drains whatever asynchronous work posted
// back onto the loop.
//
// The tester captures everything that leaves the session — outbound
// comm frames through a loopback bridge, surfaces as views render onto
// them, and errors reported through the global handler, which is
// restored on cleanup.
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import prismtest "github.com/go-prism/prism/pkg/testing"
package testing
