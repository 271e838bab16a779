// Package objgraph is the entry point for applications: a Manager owns one
// backing store connection and hands out managed contexts over it.
//
//	m := objgraph.New(cfg, objgraph.WithSchemaFS(models, "models"))
//	defer m.Close()
//
//	c := m.Main()
//	p, _ := objgraph.Insert[Person](c, map[string]any{"name": "ada"})
//	if err := c.Save(nil).Wait(ctx); err != nil { ... }
//
// New does no I/O. The first call to Root, Main, NewContext or InitErr
// loads the model and opens the store. If that fails the failure is logged
// once, kept as InitErr, and the manager continues with a root that has no
// store: fetches see only pending records and saves that reach the root
// fail with STORE_UNAVAILABLE.
package objgraph
