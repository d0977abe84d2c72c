// Package factory is a small generic registry used to build pluggable
// backends (stores, notifiers, metrics sinks) from configuration. A module is
// described by a type name and a map of raw settings; each factory decodes the
// settings into its own struct.
//
//	reg := factory.NewRegistry[store.Store]()
//	_ = reg.Register("sqlite", func(conf map[string]any) (store.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return sqldb.OpenSQLite(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "dispatch.db"}})
package factory
