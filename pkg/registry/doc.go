// Package registry maps node and condition kinds named in tree descriptions
// to the factories that build them, and holds the actions that CallAction
// nodes invoke.
//
// Default returns a registry with every built-in kind registered. Hosts add
// their own kinds with Register and their side effects with RegisterAction:
//
//	reg := registry.Default()
//	reg.RegisterAction("move_to", func(ctx context.Context, call nodes.ActionCall) (domain.Status, error) {
//		return domain.StatusSuccess, nil
//	})
package registry
