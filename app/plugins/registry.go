// Package plugins maps configuration type names to backend constructors:
// stores, notifiers and journal stores.
package plugins

import (
	"github.com/kilianp07/rescue/core/events"
	"github.com/kilianp07/rescue/core/factory"
	"github.com/kilianp07/rescue/core/journal"
	"github.com/kilianp07/rescue/core/store"
)

var (
	Stores        = factory.NewRegistry[store.Store]()
	Notifiers     = factory.NewRegistry[events.Publisher]()
	JournalStores = factory.NewRegistry[journal.Store]()
)

func RegisterStore(name string, f factory.Factory[store.Store]) error {
	return Stores.Register(name, f)
}
func RegisterNotifier(name string, f factory.Factory[events.Publisher]) error {
	return Notifiers.Register(name, f)
}
func RegisterJournalStore(name string, f factory.Factory[journal.Store]) error {
	return JournalStores.Register(name, f)
}
