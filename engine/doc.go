// Package engine wires the cache engine together.
//
// New builds exactly one of each component from a config.Config: the entity
// store, the session, the query client, the mutation coordinator, the
// telemetry observer and the health aggregator. Nothing is global; an
// application holds the *Engine and passes its parts to the code that needs
// them.
//
//	eng, err := engine.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer eng.Close(ctx)
//
//	fetcher := eng.Authorized(transport.GetComputer)
//	c, err := query.Get[entity.Computer](ctx, eng.Query(), keys.Detail(keys.Computers, id), fetcher)
package engine
