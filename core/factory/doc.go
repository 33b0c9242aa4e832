// Package factory instantiates pluggable modules, such as solvers and
// metrics sinks, from configuration. A module is selected by a type string
// and receives its raw settings, which the factory decodes into a typed
// struct.
//
//	reg := factory.NewRegistry[solver.Solver]()
//	_ = reg.Register("sequential", func(conf map[string]any) (solver.Solver, error) {
//	    c, err := factory.DecodeAs[solver.AdapterConfig](conf)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return solver.Adapt(solver.Sequential{}, c, nil)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "sequential", Conf: map[string]any{"multi_vehicle": true}})
package factory
